package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
)

const (
	// StreamName is the name of the dataset events stream.
	StreamName = "DATASETS"

	// SubjectPrefix is the prefix for all dataset subjects.
	SubjectPrefix = "datasets"
)

// EnsureStream creates the dataset events stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  2 * time.Minute,
		Description: "Dataset lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a dataset event, e.g.
// datasets.written.call-123_json.
func EventSubject(eventType model.EventType, name string) string {
	kind := strings.TrimPrefix(string(eventType), "dataset.")
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, kind, subjectToken(name))
}

// subjectToken replaces characters that are not allowed inside a subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '*' || r == '>':
			return '_'
		case r <= ' ' || r == 0x7f:
			return '_'
		default:
			return r
		}
	}, s)
}

// streamPublisher is the subset of jetstream.JetStream used for publishing.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes dataset events to JetStream.
type Publisher struct {
	js streamPublisher
}

// NewPublisher creates a publisher backed by the client's JetStream context.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{js: client.JetStream()}
}

// NotifyDatasetWritten publishes a dataset.written event. The event ID is used
// as the message ID so redeliveries are deduplicated by the stream.
func (p *Publisher) NotifyDatasetWritten(ctx context.Context, event *model.DatasetEvent) error {
	_, err := p.Publish(ctx, event)
	return err
}

// Publish publishes an event and returns its stream sequence.
func (p *Publisher) Publish(ctx context.Context, event *model.DatasetEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.js.Publish(ctx, EventSubject(event.Type, event.Name), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
