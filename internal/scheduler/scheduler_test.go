package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/config"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/mq"
	"go.uber.org/zap"
)

type repoFake struct {
	installations []db.Installation
	stale         []db.TamperEvent
}

func (f *repoFake) ListInstallations(context.Context) ([]db.Installation, error) {
	return f.installations, nil
}

func (f *repoFake) ListUnresolvedOlderThan(context.Context, time.Time, []db.TamperSeverity) ([]db.TamperEvent, error) {
	return f.stale, nil
}

type detectorFake struct {
	monitored map[uuid.UUID]bool
	started   []uuid.UUID
	stopped   []uuid.UUID
	diagnosed []uuid.UUID
}

func (f *detectorFake) IsMonitoring(_ context.Context, id uuid.UUID) (bool, error) {
	return f.monitored[id], nil
}

func (f *detectorFake) StartMonitoring(_ context.Context, id uuid.UUID) error {
	f.started = append(f.started, id)
	f.monitored[id] = true
	return nil
}

func (f *detectorFake) StopMonitoring(_ context.Context, id uuid.UUID) error {
	f.stopped = append(f.stopped, id)
	f.monitored[id] = false
	return nil
}

func (f *detectorFake) RunDiagnostics(_ context.Context, id uuid.UUID) error {
	f.diagnosed = append(f.diagnosed, id)
	return nil
}

type configsFake struct {
	channels []db.NotificationChannel
}

func (f *configsFake) GetOrCreateDefault(_ context.Context, installationID uuid.UUID) (*db.AlertConfig, error) {
	return &db.AlertConfig{
		InstallationID:       installationID,
		AlertLevel:           db.AlertLevelMedium,
		NotificationChannels: f.channels,
	}, nil
}

type auditFake struct {
	entries []db.SecurityLog
}

func (f *auditFake) Record(_ context.Context, installationID uuid.UUID, activity db.ActivityType, details, actor string) error {
	f.entries = append(f.entries, db.SecurityLog{
		InstallationID: installationID,
		ActivityType:   activity,
		Details:        details,
		UserID:         actor,
	})
	return nil
}

type publisherFake struct {
	published []mq.AlertMessage
}

func (f *publisherFake) PublishAlert(_ context.Context, msg mq.AlertMessage, _ string) error {
	f.published = append(f.published, msg)
	return nil
}

func newTestScheduler(repo *repoFake, detector *detectorFake, configs *configsFake, audit *auditFake, publisher *publisherFake) *Scheduler {
	return NewScheduler(repo, detector, configs, audit, publisher, "tamper.alert",
		config.SchedulerConfig{}, zap.NewNop())
}

func TestRunDiagnostics_OnlyMonitoredInstallations(t *testing.T) {
	monitored := uuid.New()
	idle := uuid.New()
	repo := &repoFake{installations: []db.Installation{
		{ID: monitored, Status: db.InstallationActive},
		{ID: idle, Status: db.InstallationActive},
	}}
	detector := &detectorFake{monitored: map[uuid.UUID]bool{monitored: true}}

	s := newTestScheduler(repo, detector, &configsFake{}, &auditFake{}, &publisherFake{})
	s.runDiagnostics(context.Background())

	if len(detector.diagnosed) != 1 {
		t.Fatalf("Expected diagnostics on one installation, got %d", len(detector.diagnosed))
	}
	if detector.diagnosed[0] != monitored {
		t.Errorf("Expected diagnostics on %s, got %s", monitored, detector.diagnosed[0])
	}
}

func TestReconcileMonitoring_StartsAndStops(t *testing.T) {
	active := uuid.New()
	suspended := uuid.New()
	repo := &repoFake{installations: []db.Installation{
		{ID: active, Status: db.InstallationActive},
		{ID: suspended, Status: db.InstallationSuspended},
	}}
	detector := &detectorFake{monitored: map[uuid.UUID]bool{suspended: true}}

	s := newTestScheduler(repo, detector, &configsFake{}, &auditFake{}, &publisherFake{})
	s.reconcileMonitoring(context.Background())

	if len(detector.started) != 1 || detector.started[0] != active {
		t.Errorf("Expected monitoring started for the active installation, got %v", detector.started)
	}
	if len(detector.stopped) != 1 || detector.stopped[0] != suspended {
		t.Errorf("Expected monitoring stopped for the suspended installation, got %v", detector.stopped)
	}
}

func TestEscalateStaleEvents_AuditsAndPublishesPerChannel(t *testing.T) {
	installationID := uuid.New()
	event := db.TamperEvent{
		ID:              uuid.New(),
		InstallationID:  installationID,
		EventType:       db.EventPhysicalMovement,
		Timestamp:       time.Now().UTC().Add(-5 * time.Hour),
		Severity:        db.SeverityHigh,
		ConfidenceScore: 0.8,
		Description:     "Physical movement detected",
	}
	repo := &repoFake{stale: []db.TamperEvent{event}}
	configs := &configsFake{channels: []db.NotificationChannel{db.ChannelEmail, db.ChannelInApp}}
	audit := &auditFake{}
	publisher := &publisherFake{}

	s := newTestScheduler(repo, &detectorFake{monitored: map[uuid.UUID]bool{}}, configs, audit, publisher)
	s.escalateStaleEvents(context.Background())

	if len(audit.entries) != 1 {
		t.Fatalf("Expected one escalation audit entry, got %d", len(audit.entries))
	}
	if audit.entries[0].ActivityType != db.ActivityAlertGenerated {
		t.Errorf("Expected ALERT_GENERATED entry, got %s", audit.entries[0].ActivityType)
	}

	if len(publisher.published) != 2 {
		t.Fatalf("Expected one alert per channel, got %d", len(publisher.published))
	}
	for _, msg := range publisher.published {
		if msg.ResponseType != string(db.ResponseAdminAlert) {
			t.Errorf("Expected ADMIN_ALERT escalations, got %s", msg.ResponseType)
		}
	}
}
