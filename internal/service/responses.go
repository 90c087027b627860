package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/mq"
	"go.uber.org/zap"
)

type responsePlan struct {
	responseType db.ResponseType
	details      string
}

// autoResponsePlans maps event severity to the single automatic response
// executed for it. New tiers get a new entry, call sites stay unchanged.
var autoResponsePlans = map[db.TamperSeverity]responsePlan{
	db.SeverityCritical: {
		responseType: db.ResponseServiceSuspended,
		details:      "Critical security event detected. Service automatically suspended pending investigation.",
	},
	db.SeverityHigh: {
		responseType: db.ResponseAdminAlert,
		details:      "High severity security event detected. Administrators have been notified.",
	},
	db.SeverityMedium: {
		responseType: db.ResponseNotificationSent,
		details:      "Medium severity security event detected. Notifications sent to relevant parties.",
	},
	db.SeverityLow: {
		responseType: db.ResponseEvidenceCollection,
		details:      "Low severity security event detected. Evidence collected for review.",
	},
}

// AutoResponseTypeFor returns the response type executed automatically for a
// severity tier.
func AutoResponseTypeFor(severity db.TamperSeverity) db.ResponseType {
	return autoResponsePlans[severity].responseType
}

// ResponseRepository is the storage surface the response service depends on.
type ResponseRepository interface {
	GetTamperEvent(ctx context.Context, id uuid.UUID) (*db.TamperEvent, error)
	InsertTamperResponse(ctx context.Context, response *db.TamperResponse) error
	ListResponsesByEvent(ctx context.Context, eventID uuid.UUID) ([]db.TamperResponse, error)
	ListResponsesByEventAndType(ctx context.Context, eventID uuid.UUID, responseType db.ResponseType) ([]db.TamperResponse, error)
	CountSuccessfulResponsesByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// AlertPublisher delivers alert messages to the notification exchange.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, msg mq.AlertMessage, routingKey string) error
}

// ResponseService executes and records responses to tamper events.
type ResponseService struct {
	repo            ResponseRepository
	configs         *AlertConfigService
	audit           *SecurityLogService
	publisher       AlertPublisher
	alertRoutingKey string
	logger          *zap.Logger
}

// NewResponseService creates a new response service
func NewResponseService(repo ResponseRepository, configs *AlertConfigService, audit *SecurityLogService, publisher AlertPublisher, alertRoutingKey string, logger *zap.Logger) *ResponseService {
	return &ResponseService{
		repo:            repo,
		configs:         configs,
		audit:           audit,
		publisher:       publisher,
		alertRoutingKey: alertRoutingKey,
		logger:          logger,
	}
}

// ExecuteAutomatic runs the severity-mapped automatic response for an event
// and then attempts notification delivery. A disabled auto-response config
// makes this a logged no-op. Delivery failures are recorded on the response
// row, never returned.
func (s *ResponseService) ExecuteAutomatic(ctx context.Context, eventID uuid.UUID) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}

	enabled, err := s.configs.IsAutoResponseEnabled(ctx, event.InstallationID)
	if err != nil {
		return err
	}
	if !enabled {
		s.logger.Info("automatic response skipped, auto-response disabled",
			zap.String("event_id", eventID.String()),
			zap.String("installation_id", event.InstallationID.String()),
		)
		return nil
	}

	plan, ok := autoResponsePlans[event.Severity]
	if !ok {
		return fmt.Errorf("%w: no automatic response for severity %q", ErrInvalidArgument, event.Severity)
	}

	// The notification plan's row is written by SendNotification itself after
	// the channel fan-out; pre-creating it here would trip the idempotence
	// guard and suppress the publish.
	if plan.responseType == db.ResponseNotificationSent {
		return s.SendNotification(ctx, eventID, string(plan.responseType))
	}

	if _, err := s.createResponse(ctx, event, plan.responseType, SystemActor, plan.details, nil); err != nil {
		return err
	}

	return s.SendNotification(ctx, eventID, string(plan.responseType))
}

// SendNotification publishes the event to every configured notification
// channel and records a NOTIFICATION_SENT response. Idempotent per event: an
// existing NOTIFICATION_SENT response short-circuits. Publish failures are
// captured on the response record rather than propagated, so a dead
// notification channel cannot undo a detection.
func (s *ResponseService) SendNotification(ctx context.Context, eventID uuid.UUID, notificationType string) error {
	existing, err := s.repo.ListResponsesByEventAndType(ctx, eventID, db.ResponseNotificationSent)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.logger.Debug("notification already sent for event",
			zap.String("event_id", eventID.String()))
		return nil
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}

	config, err := s.configs.GetOrCreateDefault(ctx, event.InstallationID)
	if err != nil {
		return err
	}

	var failure *string
	for _, channel := range config.NotificationChannels {
		msg := mq.AlertMessage{
			EventID:         event.ID.String(),
			InstallationID:  event.InstallationID.String(),
			EventType:       string(event.EventType),
			Severity:        string(event.Severity),
			ConfidenceScore: event.ConfidenceScore,
			Description:     event.Description,
			Channel:         string(channel),
			ResponseType:    notificationType,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		}
		routingKey := fmt.Sprintf("%s.%s", s.alertRoutingKey, strings.ToLower(string(channel)))
		if err := s.publisher.PublishAlert(ctx, msg, routingKey); err != nil {
			s.logger.Error("failed to publish alert notification",
				zap.Error(err),
				zap.String("event_id", eventID.String()),
				zap.String("channel", string(channel)),
			)
			reason := fmt.Sprintf("publish to %s failed: %v", channel, err)
			failure = &reason
		}
	}

	details := fmt.Sprintf("Notification sent: %s for tamper event: %s with severity: %s",
		notificationType, event.EventType, event.Severity)
	if _, err := s.createResponse(ctx, event, db.ResponseNotificationSent, SystemActor, details, failure); err != nil {
		return err
	}

	return nil
}

// CreateManual records an administrator-invoked response. No severity
// mapping and no idempotence guard.
func (s *ResponseService) CreateManual(ctx context.Context, eventID uuid.UUID, responseType db.ResponseType, executedBy, details string) (*db.TamperResponse, error) {
	if !responseType.Valid() {
		return nil, fmt.Errorf("%w: unknown response type %q", ErrInvalidArgument, responseType)
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return s.createResponse(ctx, event, responseType, executedBy, details, nil)
}

// ListByEvent retrieves responses for a tamper event, newest first.
func (s *ResponseService) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]db.TamperResponse, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListResponsesByEvent(ctx, eventID)
}

// ListByEventAndType retrieves responses for a tamper event with the given
// type.
func (s *ResponseService) ListByEventAndType(ctx context.Context, eventID uuid.UUID, responseType db.ResponseType) ([]db.TamperResponse, error) {
	return s.repo.ListResponsesByEventAndType(ctx, eventID, responseType)
}

// CountSuccessful counts successful responses for a tamper event.
func (s *ResponseService) CountSuccessful(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return s.repo.CountSuccessfulResponsesByEvent(ctx, eventID)
}

func (s *ResponseService) getEvent(ctx context.Context, eventID uuid.UUID) (*db.TamperEvent, error) {
	event, err := s.repo.GetTamperEvent(ctx, eventID)
	if err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("tamper event %s: %w", eventID, ErrNotFound)
		}
		return nil, err
	}
	return event, nil
}

func (s *ResponseService) createResponse(ctx context.Context, event *db.TamperEvent, responseType db.ResponseType, executedBy, details string, failureReason *string) (*db.TamperResponse, error) {
	if executedBy == "" {
		executedBy = SystemActor
	}

	response := &db.TamperResponse{
		TamperEventID:   event.ID,
		ResponseType:    responseType,
		ExecutedAt:      time.Now().UTC(),
		Success:         failureReason == nil,
		FailureReason:   failureReason,
		ExecutedBy:      executedBy,
		ResponseDetails: details,
	}

	if err := s.repo.InsertTamperResponse(ctx, response); err != nil {
		return nil, err
	}

	activity := db.ActivitySystemDiagnostic
	if responseType == db.ResponseNotificationSent {
		activity = db.ActivityAlertGenerated
	}
	auditDetails := fmt.Sprintf("Tamper response executed: %s for tamper event ID: %s", responseType, event.ID)
	if err := s.audit.Record(ctx, event.InstallationID, activity, auditDetails, executedBy); err != nil {
		return nil, err
	}

	s.logger.Info("tamper response recorded",
		zap.String("event_id", event.ID.String()),
		zap.String("response_type", string(responseType)),
		zap.Bool("success", response.Success),
	)

	return response, nil
}
