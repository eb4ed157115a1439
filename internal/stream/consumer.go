// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream consumes feedback events from a Kafka topic and records
// them through the Feedback Tracker.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder records one fully specified feedback event.
type Recorder interface {
	RecordEvent(ctx context.Context, ev types.FeedbackEvent) (types.FeedbackEvent, error)
}

// Summary counts what a consumer run did.
type Summary struct {
	Recorded   int `json:"recorded"`
	Untracked  int `json:"untracked"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
	Unknown    int `json:"unknown_article"`
}

// Consumer reads feedback events and commits each offset after the event
// has been handled. Malformed messages, unknown articles, and replayed
// event IDs are logged and skipped; store failures stop the consumer
// without committing so the message is redelivered.
type Consumer struct {
	reader   MessageReader
	recorder Recorder
	validate *validator.Validate
}

// NewReader builds a consumer-group reader from configuration.
func NewReader(cfg types.StreamConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("stream.brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("stream.topic is required")
	}
	group := cfg.GroupID
	if group == "" {
		group = "kb-engine"
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        group,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
		StartOffset:    kafka.FirstOffset,
	}), nil
}

// New creates a Consumer.
func New(reader MessageReader, recorder Recorder) *Consumer {
	return &Consumer{reader: reader, recorder: recorder, validate: validator.New()}
}

// Run consumes until ctx is cancelled. Cancellation is a clean stop and
// returns a nil error.
func (c *Consumer) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("closing kafka reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("feedback consumer stopped", "recorded", sum.Recorded)
				return sum, nil
			}
			return sum, fmt.Errorf("fetching message: %w", err)
		}

		if err := c.handle(ctx, msg, &sum); err != nil {
			return sum, err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return sum, nil
			}
			return sum, fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

// handle records one message. It returns an error only when the message
// should be retried.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, sum *Summary) error {
	log := slog.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev types.FeedbackEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Warn("skipping malformed feedback message", "error", err)
		sum.Malformed++
		return nil
	}
	if err := c.validate.Struct(ev); err != nil {
		log.Warn("skipping invalid feedback event", "error", err)
		sum.Malformed++
		return nil
	}

	got, err := c.recorder.RecordEvent(ctx, ev)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		log.Debug("skipping replayed feedback event", "id", ev.ID)
		sum.Duplicates++
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Warn("skipping feedback for unknown article", "article_id", ev.ArticleID)
		sum.Unknown++
		return nil
	case err != nil:
		return fmt.Errorf("recording event at offset %d: %w", msg.Offset, err)
	}

	if got.Tracked {
		sum.Recorded++
	} else {
		sum.Untracked++
	}
	log.Debug("recorded feedback", "article_id", got.ArticleID, "event_type", got.EventType, "tracked", got.Tracked)
	return nil
}
