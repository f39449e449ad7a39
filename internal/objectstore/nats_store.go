// Package objectstore keeps CAPTCHA files in a NATS JetStream object store
// bucket so the classification service and its clients can exchange them by key.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	bucketDescriptionFmt = "CAPTCHA files for the %s bucket."
	errFmtGet            = "failed to get captcha '%s' from bucket '%s': %w"
	errFmtPut            = "failed to put captcha '%s' to bucket '%s': %w"
	errFmtDelete         = "failed to delete captcha '%s' from bucket '%s': %w"
)

// ErrEmptyKey is returned for operations without an object key.
var ErrEmptyKey = errors.New("object key cannot be empty")

// NatsObjectStore implements core.ObjectStore on a JetStream object store.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf(bucketDescriptionFmt, bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
	}

	return &NatsObjectStore{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves a CAPTCHA file.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf(errFmtGet, key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read captcha '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close captcha '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores a CAPTCHA file under key, replacing any previous content.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := n.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf(errFmtPut, key, n.bucket, err)
	}

	return nil
}

// Delete removes a CAPTCHA file.
func (n *NatsObjectStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	err := n.store.Delete(key)
	if err != nil {
		return fmt.Errorf(errFmtDelete, key, n.bucket, err)
	}

	return nil
}
