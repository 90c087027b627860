package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/mq"
	"github.com/solarops/tamper-detection-worker/internal/repository"
)

// fakeStore is an in-memory stand-in for the repository, covering the
// service-level paths that do not need real SQL. Not safe for concurrent use;
// the tests drive it from one goroutine.
type fakeStore struct {
	installation *db.Installation
	config       *db.AlertConfig
	events       map[uuid.UUID]*db.TamperEvent
	responses    []db.TamperResponse
	logs         []db.SecurityLog
	monitoring   map[uuid.UUID]bool
}

func newFakeStore(installation *db.Installation) *fakeStore {
	return &fakeStore{
		installation: installation,
		events:       make(map[uuid.UUID]*db.TamperEvent),
		monitoring:   make(map[uuid.UUID]bool),
	}
}

// addEvent seeds an event directly, bypassing the service layer.
func (f *fakeStore) addEvent(event *db.TamperEvent) *db.TamperEvent {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	f.events[event.ID] = event
	return event
}

// fakeTx satisfies repository.Tx for paths that only commit or roll back; the
// store's own methods ignore the transaction handle.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

func (f *fakeStore) BeginTx(context.Context) (repository.Tx, error) {
	return fakeTx{}, nil
}

func (f *fakeStore) GetInstallation(_ context.Context, id uuid.UUID) (*db.Installation, error) {
	if f.installation == nil || f.installation.ID != id {
		return nil, pgx.ErrNoRows
	}
	installation := *f.installation
	return &installation, nil
}

func (f *fakeStore) SetInstallationTamperTx(_ context.Context, _ repository.Tx, id uuid.UUID, detected bool, checkedAt time.Time) error {
	if f.installation == nil || f.installation.ID != id {
		return pgx.ErrNoRows
	}
	f.installation.TamperDetected = detected
	f.installation.LastTamperCheck = &checkedAt
	return nil
}

func (f *fakeStore) InsertTamperEventTx(_ context.Context, _ repository.Tx, event *db.TamperEvent) error {
	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()
	stored := *event
	f.events[event.ID] = &stored
	return nil
}

func (f *fakeStore) GetTamperEvent(_ context.Context, id uuid.UUID) (*db.TamperEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *event
	return &out, nil
}

func (f *fakeStore) GetTamperEventForUpdateTx(ctx context.Context, _ repository.Tx, id uuid.UUID) (*db.TamperEvent, error) {
	return f.GetTamperEvent(ctx, id)
}

func (f *fakeStore) UpdateTamperEventStatusTx(_ context.Context, _ repository.Tx, event *db.TamperEvent) error {
	stored, ok := f.events[event.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = event.Status
	stored.Resolved = event.Resolved
	stored.ResolvedAt = event.ResolvedAt
	stored.ResolvedBy = event.ResolvedBy
	stored.ResolutionNotes = event.ResolutionNotes
	return nil
}

func (f *fakeStore) CountUnresolvedByInstallationTx(_ context.Context, _ repository.Tx, installationID uuid.UUID) (int64, error) {
	var count int64
	for _, event := range f.events {
		if event.InstallationID == installationID && !event.Resolved {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListEventsByInstallation(_ context.Context, installationID uuid.UUID, _ int) ([]db.TamperEvent, error) {
	var out []db.TamperEvent
	for _, event := range f.events {
		if event.InstallationID == installationID {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUnresolvedEvents(_ context.Context, _ []db.TamperSeverity) ([]db.TamperEvent, error) {
	var out []db.TamperEvent
	for _, event := range f.events {
		if !event.Resolved {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEventsByTimeRange(ctx context.Context, installationID uuid.UUID, _, _ time.Time) ([]db.TamperEvent, error) {
	return f.ListEventsByInstallation(ctx, installationID, 0)
}

func (f *fakeStore) InsertSecurityLog(_ context.Context, entry *db.SecurityLog) error {
	entry.ID = uuid.New()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) InsertSecurityLogTx(ctx context.Context, _ repository.Tx, entry *db.SecurityLog) error {
	return f.InsertSecurityLog(ctx, entry)
}

func (f *fakeStore) ListSecurityLogsByInstallation(_ context.Context, installationID uuid.UUID, _ int) ([]db.SecurityLog, error) {
	var out []db.SecurityLog
	for _, entry := range f.logs {
		if entry.InstallationID == installationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAlertConfigByInstallation(_ context.Context, installationID uuid.UUID) (*db.AlertConfig, error) {
	if f.config == nil || f.config.InstallationID != installationID {
		return nil, pgx.ErrNoRows
	}
	config := *f.config
	return &config, nil
}

func (f *fakeStore) InsertAlertConfig(_ context.Context, config *db.AlertConfig) error {
	if f.config != nil && f.config.InstallationID == config.InstallationID {
		// Conflict: the insert is a no-op and returns no row.
		return pgx.ErrNoRows
	}
	config.ID = uuid.New()
	now := time.Now().UTC()
	config.CreatedAt = now
	config.UpdatedAt = now
	stored := *config
	f.config = &stored
	return nil
}

func (f *fakeStore) UpdateAlertConfig(_ context.Context, config *db.AlertConfig) error {
	if f.config == nil || f.config.InstallationID != config.InstallationID {
		return pgx.ErrNoRows
	}
	config.UpdatedAt = time.Now().UTC()
	stored := *config
	f.config = &stored
	return nil
}

func (f *fakeStore) InsertTamperResponse(_ context.Context, response *db.TamperResponse) error {
	response.ID = uuid.New()
	f.responses = append(f.responses, *response)
	return nil
}

func (f *fakeStore) ListResponsesByEvent(_ context.Context, eventID uuid.UUID) ([]db.TamperResponse, error) {
	var out []db.TamperResponse
	for _, response := range f.responses {
		if response.TamperEventID == eventID {
			out = append(out, response)
		}
	}
	return out, nil
}

func (f *fakeStore) ListResponsesByEventAndType(_ context.Context, eventID uuid.UUID, responseType db.ResponseType) ([]db.TamperResponse, error) {
	var out []db.TamperResponse
	for _, response := range f.responses {
		if response.TamperEventID == eventID && response.ResponseType == responseType {
			out = append(out, response)
		}
	}
	return out, nil
}

func (f *fakeStore) CountSuccessfulResponsesByEvent(_ context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	for _, response := range f.responses {
		if response.TamperEventID == eventID && response.Success {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) IsMonitoring(_ context.Context, installationID uuid.UUID) (bool, error) {
	return f.monitoring[installationID], nil
}

func (f *fakeStore) UpsertMonitoringStatus(_ context.Context, installationID uuid.UUID, monitoring bool) (*db.MonitoringStatus, error) {
	f.monitoring[installationID] = monitoring
	return &db.MonitoringStatus{
		ID:             uuid.New(),
		InstallationID: installationID,
		Monitoring:     monitoring,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// fakePublisher records published alert messages instead of touching a
// broker.
type fakePublisher struct {
	published []mq.AlertMessage
	failWith  error
}

func (p *fakePublisher) PublishAlert(_ context.Context, msg mq.AlertMessage, _ string) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, msg)
	return nil
}

func defaultTestConfig(installationID uuid.UUID) *db.AlertConfig {
	now := time.Now().UTC()
	return &db.AlertConfig{
		ID:                              uuid.New(),
		InstallationID:                  installationID,
		AlertLevel:                      db.AlertLevelMedium,
		NotificationChannels:            []db.NotificationChannel{db.ChannelEmail, db.ChannelInApp},
		AutoResponseEnabled:             true,
		PhysicalMovementThreshold:       0.75,
		VoltageFluctuationThreshold:     0.50,
		ConnectionInterruptionThreshold: 0.80,
		SamplingRateSeconds:             60,
		CreatedAt:                       now,
		UpdatedAt:                       now,
	}
}
