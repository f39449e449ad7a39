// Command captcha-client uploads a CAPTCHA to the object store, asks the
// captcha-service to classify it and prints "filename, label".
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/captcha-lab/internal/cli"
	"github.com/book-expert/captcha-lab/internal/config"
	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/objectstore"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagFile        = "file"
	flagCaptchaType = "captcha-type"
	flagNATSURL     = "nats-url"
	flagTimeout     = "timeout"
	flagConfig      = "config"
)

// Flag descriptions.
const (
	flagFileDesc        = "CAPTCHA file to classify"
	flagCaptchaTypeDesc = "Kind of CAPTCHA: image or audio"
	flagNATSURLDesc     = "NATS server URL"
	flagTimeoutDesc     = "How long to wait for the classification"
	flagConfigDesc      = "Path to a TOML configuration file"
)

// Messages for missing arguments.
const (
	msgMissingFile    = "Please specify the captcha file to classify"
	msgMissingNATSURL = "Please specify the NATS server URL"
)

// Output and log messages.
const (
	logFileName      = "captcha-client.log"
	clientName       = "captcha-client"
	outputLineFormat = "%s, %s\n"
	logFmtUploaded   = "Uploaded %s as %s to bucket %s"
	logFmtClassified = "Classified %s as %q"
	errFmtRequest    = "classification request for %s failed: %w"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	file        string
	captchaType string
	natsURL     string
	timeout     time.Duration
	config      string
}

// request is one CAPTCHA submission.
type request struct {
	path        string
	captchaType core.CaptchaType
	subject     string
}

func main() {
	cli.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(flags.config)
	if err != nil {
		return err
	}

	if flags.file == "" {
		return cli.MissingArg(msgMissingFile)
	}

	natsURL := cli.StringOr(flags.natsURL, cfg.NATS.URL)
	if natsURL == "" {
		return cli.MissingArg(msgMissingNATSURL)
	}

	captchaType, err := core.ParseCaptchaType(cli.StringOr(flags.captchaType, cfg.Classifier.CaptchaType))
	if err != nil {
		return err
	}

	timeout := flags.timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.NATS.RequestTimeoutSeconds) * time.Second
	}

	log, err := cli.NewLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return err
	}
	defer cli.CloseLogger(log)

	natsConnection, err := nats.Connect(natsURL, nats.Name(clientName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	defer natsConnection.Close()

	jetStream, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetStream, cfg.NATS.CaptchaObjectStoreBucket)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	label, err := submit(ctx, natsConnection, store, request{
		path:        flags.file,
		captchaType: captchaType,
		subject:     cfg.NATS.CaptchaSubmittedSubject,
	}, log)
	if err != nil {
		log.Error("%v", err)

		return err
	}

	fmt.Fprintf(stdout, outputLineFormat, filepath.Base(flags.file), label)

	return nil
}

// submit uploads the CAPTCHA under a fresh key, requests its classification
// and removes the upload again.
func submit(
	ctx context.Context,
	natsConnection *nats.Conn,
	store *objectstore.NatsObjectStore,
	req request,
	log *logger.Logger,
) (string, error) {
	data, err := os.ReadFile(req.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", req.path, err)
	}

	key := uuid.NewString() + filepath.Ext(req.path)

	err = store.Upload(ctx, key, data)
	if err != nil {
		return "", err
	}

	defer func() {
		deleteErr := store.Delete(ctx, key)
		if deleteErr != nil {
			log.Warn("Failed to delete %s: %v", key, deleteErr)
		}
	}()

	log.Info(logFmtUploaded, req.path, key, store.Bucket())

	payload, err := json.Marshal(core.CaptchaSubmittedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		CaptchaKey:  key,
		CaptchaType: req.captchaType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request event: %w", err)
	}

	reply, err := natsConnection.RequestWithContext(ctx, req.subject, payload)
	if err != nil {
		return "", fmt.Errorf(errFmtRequest, req.path, err)
	}

	var classified core.CaptchaClassifiedEvent

	err = json.Unmarshal(reply.Data, &classified)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	log.Info(logFmtClassified, req.path, classified.Label)

	return classified.Label, nil
}

// parseFlags parses args into appFlags.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("captcha-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flagSet.StringVar(&flags.captchaType, flagCaptchaType, "", flagCaptchaTypeDesc)
	flagSet.StringVar(&flags.natsURL, flagNATSURL, "", flagNATSURLDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, 0, flagTimeoutDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}
