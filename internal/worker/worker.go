// Package worker provides a NATS worker that classifies submitted CAPTCHAs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

var (
	// ErrCaptchaKeyEmpty indicates that the event names no object.
	ErrCaptchaKeyEmpty = errors.New("captcha key cannot be empty")
	// ErrCaptchaTypeMismatch indicates that the event's captcha type is not the one the worker classifies.
	ErrCaptchaTypeMismatch = errors.New("captcha type not handled by this worker")
)

// NatsWorker listens for CaptchaSubmittedEvents on a NATS subject and replies
// with the decoded label.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	queueGroup     string
	store          core.ObjectStore
	classifier     core.Classifier
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Workers sharing a
// non-empty queue group split the messages between them.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	queueGroup string,
	store core.ObjectStore,
	classifier core.Classifier,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		queueGroup:     queueGroup,
		store:          store,
		classifier:     classifier,
		log:            log,
	}
}

// Run subscribes and handles messages until ctx is cancelled, then drains the
// subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	var (
		sub *nats.Subscription
		err error
	)

	if w.queueGroup != "" {
		sub, err = w.natsConnection.QueueSubscribe(w.subject, w.queueGroup, w.handleMessage)
	} else {
		sub, err = w.natsConnection.Subscribe(w.subject, w.handleMessage)
	}

	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Classifying %s captchas from subject %s", w.classifier.CaptchaType(), w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	label, err := w.classify(ctx, event)
	if err != nil {
		w.log.Error("Failed to classify captcha %s for workflow %s: %v", event.CaptchaKey, event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Classified %s as %q for workflow %s", event.CaptchaKey, label, event.Header.WorkflowID)

	replyEvent := &core.CaptchaClassifiedEvent{
		Header:     replyHeader(event.Header),
		CaptchaKey: event.CaptchaKey,
		Label:      label,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) classify(ctx context.Context, event *core.CaptchaSubmittedEvent) (string, error) {
	data, err := w.store.Download(ctx, event.CaptchaKey)
	if err != nil {
		return "", fmt.Errorf("failed to download captcha for key '%s': %w", event.CaptchaKey, err)
	}

	label, err := w.classifier.Classify(event.CaptchaKey, data)
	if err != nil {
		return "", fmt.Errorf("failed to classify captcha: %w", err)
	}

	return label, nil
}

// replyHeader keeps the workflow identity and stamps a new event.
func replyHeader(request events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: request.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}

// publishReplyEvent marshals and responds with the CaptchaClassifiedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *core.CaptchaClassifiedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*core.CaptchaSubmittedEvent, error) {
	var event core.CaptchaSubmittedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.CaptchaKey == "" {
		return nil, ErrCaptchaKeyEmpty
	}

	if event.CaptchaType != w.classifier.CaptchaType() {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrCaptchaTypeMismatch, event.CaptchaType, w.classifier.CaptchaType())
	}

	return &event, nil
}
