// main package for the captcha-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/captcha-lab/internal/classify"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/imaging"
	"github.com/book-expert/captcha-lab/internal/objectstore"
	"github.com/book-expert/captcha-lab/internal/worker"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFileName = "captcha-service-bootstrap.log"
	logFileName          = "captcha-service.log"
	queueGroup           = "captcha-classifiers"
	clientName           = "captcha-service"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// classifierOptions maps the [classifier] and [audio] sections to classifier options.
func classifierOptions(cfg *config.Config) (classify.Options, error) {
	captchaType, err := core.ParseCaptchaType(cfg.Classifier.CaptchaType)
	if err != nil {
		return classify.Options{}, err
	}

	threshold, err := imaging.ParseMode(cfg.Classifier.Threshold)
	if err != nil {
		return classify.Options{}, err
	}

	return classify.Options{
		CaptchaType:    captchaType,
		ModelName:      cfg.Classifier.ModelName,
		SymbolsPath:    cfg.Classifier.SymbolsPath,
		Threshold:      threshold,
		Audio:          cfg.Audio.Settings(),
		RuntimeLibrary: cfg.Classifier.RuntimeLibrary,
	}, nil
}

func loadConfig() (*config.Config, error) {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.ValidateService()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	options, err := classifierOptions(cfg)
	if err != nil {
		log.Error("Invalid classifier settings: %v", err)

		return err
	}

	classifier, err := classify.NewFromOptions(options, log)
	if err != nil {
		log.Error("Failed to load classifier: %v", err)

		return fmt.Errorf("failed to load classifier: %w", err)
	}

	defer func() {
		closeErr := classifier.Close()
		if closeErr != nil {
			log.Warn("Failed to release model: %v", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(clientName))
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetStream, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetStream, cfg.NATS.CaptchaObjectStoreBucket)
	if err != nil {
		log.Error("Failed to open object store %s: %v", cfg.NATS.CaptchaObjectStoreBucket, err)

		return err
	}

	// 4. Log confirmation message
	log.System("Captcha-Service successfully initialized. Listening for jobs on subject: %s",
		cfg.NATS.CaptchaSubmittedSubject)

	natsWorker := worker.NewNatsWorker(
		natsConnection, cfg.NATS.CaptchaSubmittedSubject, queueGroup, store, classifier, log)

	err = natsWorker.Run(ctx)
	if err != nil {
		log.Error("Worker stopped: %v", err)

		return err
	}

	log.System("Captcha-Service shut down.")

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
