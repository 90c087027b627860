package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// WithInstallation returns a logger with installation_id field
func WithInstallation(logger *zap.Logger, installationID uuid.UUID) *zap.Logger {
	return logger.With(zap.String("installation_id", installationID.String()))
}
