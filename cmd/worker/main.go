package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/solarops/tamper-detection-worker/internal/config"
	"go.uber.org/fx"
)

func main() {
	loadDotEnv()

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideKeyedMutex,
			ProvideStateCache,
			ProvideMQConnection,
			ProvideAlertPublisher,
			ProvideSecurityLogService,
			ProvideAlertConfigService,
			ProvideEventService,
			ProvideResponseService,
			ProvideResponseDispatcher,
			ProvideDetectionService,
			ProvideProcessorService,
			ProvideScheduler,
		),
		fx.Invoke(startWorker),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startupLogger, _ := newLogger(&config.Config{ServiceName: "tamper-detection-worker"})
	startupLogger.Info("starting tamper detection worker")

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			startupLogger.Error("startup timed out after 30s, check database and RabbitMQ connectivity")
		}
		panic(err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("error stopping app:", err)
	}
}

// loadDotEnv loads a .env file when one is present. The worker also runs in
// containers where all configuration comes from the process environment, so a
// missing file is not an error.
func loadDotEnv() {
	candidates := []string{".env", filepath.Join("..", "..", ".env")}
	if workDir, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(filepath.Dir(workDir), ".env"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			absPath, _ := filepath.Abs(path)
			fmt.Printf("Loaded environment from %s\n", absPath)
			return
		}
	}

	fmt.Println("No .env file found, using the process environment")
}
