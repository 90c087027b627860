package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/detection"
	"github.com/solarops/tamper-detection-worker/internal/logging"
	"go.uber.org/zap"
)

// SensorMessage is the incoming sensor report from RabbitMQ.
type SensorMessage struct {
	RequestID      string          `json:"request_id"`
	InstallationID uuid.UUID       `json:"installation_id" validate:"required"`
	ReportedAt     time.Time       `json:"reported_at"`
	Readings       []SensorReading `json:"readings" validate:"required,min=1,dive"`
}

// SensorReading is a single observation inside a sensor message.
type SensorReading struct {
	EventType  string    `json:"event_type" validate:"required"`
	Value      float64   `json:"value"`
	Connected  *bool     `json:"connected"`
	Location   string    `json:"location"`
	RawData    string    `json:"raw_data"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ProcessorService turns raw MQ messages into detection pipeline calls.
type ProcessorService struct {
	detector *DetectionService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(detector *DetectionService, logger *zap.Logger) *ProcessorService {
	return &ProcessorService{
		detector: detector,
		validate: validator.New(),
		logger:   logger,
	}
}

// ProcessMessage processes an incoming sensor report message. Malformed
// messages error out (and end up in the DLQ); a reading with an unknown or
// unsupported event type is skipped with a warning so one bad reading cannot
// poison the rest of the report.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg SensorMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal sensor message: %w", err)
	}
	if err := s.validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid sensor message: %w", err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing sensor message",
		zap.String("installation_id", msg.InstallationID.String()),
		zap.Int("reading_count", len(msg.Readings)),
	)

	var detected int
	for _, r := range msg.Readings {
		reading := detection.Reading{
			EventType: db.TamperEventType(r.EventType),
			Value:     r.Value,
			Connected: r.Connected == nil || *r.Connected,
			Location:  r.Location,
			RawData:   r.RawData,
		}

		event, err := s.detector.ProcessReading(ctx, msg.InstallationID, reading)
		if err != nil {
			if errors.Is(err, ErrInvalidArgument) {
				reqLogger.Warn("skipping reading with unsupported event type",
					zap.String("event_type", r.EventType))
				continue
			}
			reqLogger.Error("failed to process reading",
				zap.Error(err),
				zap.String("event_type", r.EventType),
			)
			return fmt.Errorf("failed to process reading: %w", err)
		}
		if event != nil {
			detected++
			reqLogger.Info("tamper event detected",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.EventType)),
				zap.String("severity", string(event.Severity)),
			)
		}
	}

	reqLogger.Info("sensor message processed",
		zap.Int("readings_count", len(msg.Readings)),
		zap.Int("events_detected", detected),
	)

	return nil
}
