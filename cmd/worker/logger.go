package main

import (
	"github.com/solarops/tamper-detection-worker/internal/config"
	"github.com/solarops/tamper-detection-worker/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
