package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements Store on a NATS JetStream key-value bucket, letting
// instances on different hosts share one storage origin.
type NATSStore struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSStore connects to url and opens bucket, creating it when missing.
func NewNATSStore(ctx context.Context, url, bucket string) (*NATSStore, error) {
	if bucket == "" {
		return nil, ErrOpenFailed.WithCause(fmt.Errorf("bucket name is required"))
	}

	conn, err := nats.Connect(url, nats.Name("clientboot"))
	if err != nil {
		return nil, ErrOpenFailed.WithCause(fmt.Errorf("failed to connect to NATS: %w", err))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ErrOpenFailed.WithCause(fmt.Errorf("failed to create JetStream context: %w", err))
	}

	kv, err := openBucket(ctx, js, bucket)
	if err != nil {
		conn.Close()
		return nil, ErrOpenFailed.WithCause(err)
	}

	slog.Info("NATS key-value store opened", "url", url, "bucket", bucket)
	return &NATSStore{conn: conn, kv: kv, bucket: bucket}, nil
}

func openBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to get KV bucket: %w", err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Client bootstrap coordination state",
		History:     1, // Keep only latest value
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	slog.Info("Created KV bucket for client state", "bucket", bucket)
	return kv, nil
}

// Get returns the value stored under key.
func (s *NATSStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, wrap(ErrReadFailed, key, err)
	}
	return string(entry.Value()), true, nil
}

// Set stores value under key.
func (s *NATSStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.kv.PutString(ctx, key, value); err != nil {
		return wrap(ErrWriteFailed, key, err)
	}
	return nil
}

// Remove deletes key.
func (s *NATSStore) Remove(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return wrap(ErrRemoveFailed, key, err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
