// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestRunSkipsBadMessagesAndCommitsAll(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		msg(0, `{"id":"e1","article_id":"kb-1","event_type":"helpful","actor_id":"u1"}`),
		msg(1, `not json`),
		msg(2, `{"id":"e2","article_id":"kb-1","event_type":"love"}`),
		msg(3, `{"id":"e1","article_id":"kb-1","event_type":"helpful","actor_id":"u1"}`),
		msg(4, `{"id":"e3","article_id":"kb-404","event_type":"view"}`),
		msg(5, `{"id":"e4","article_id":"kb-1","event_type":"helpful","actor_id":"u1"}`),
		msg(6, `{"id":"e5","article_id":"kb-1","event_type":"view"}`),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	reader.cancel = cancel

	sum, err := New(reader, newFakeRecorder()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, Summary{Recorded: 2, Untracked: 1, Duplicates: 1, Malformed: 2, Unknown: 1}, sum)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, reader.committed)
	assert.True(t, reader.closed)
}

func TestRunStopsWithoutCommittingOnStoreFailure(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		msg(0, `{"id":"e1","article_id":"kb-1","event_type":"view"}`),
		msg(1, `{"id":"e2","article_id":"kb-1","event_type":"view"}`),
	}}
	rec := newFakeRecorder()
	rec.failOn = "e2"

	sum, err := New(reader, rec).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 1")
	assert.Equal(t, 1, sum.Recorded)
	assert.Equal(t, []int64{0}, reader.committed)
}

func TestRunCancelIsCleanStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &fakeReader{}

	sum, err := New(reader, newFakeRecorder()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.True(t, reader.closed)
}

func TestNewReaderRequiresBrokersAndTopic(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.StreamConfig
	}{
		{"no brokers", types.StreamConfig{Topic: "kb.feedback"}},
		{"no topic", types.StreamConfig{Brokers: []string{"localhost:9092"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.cfg)
			assert.Error(t, err)
		})
	}
}

// --- test helpers ---

// fakeReader serves msgs in order. Once drained it calls cancel, when
// set, so the run ends the way a shutdown would.
type fakeReader struct {
	msgs      []kafka.Message
	cancel    context.CancelFunc
	pos       int
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if f.pos >= len(f.msgs) {
		if f.cancel != nil {
			f.cancel()
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, errors.New("drained")
	}
	m := f.msgs[f.pos]
	f.pos++
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type fakeRecorder struct {
	seen   map[string]bool
	votes  map[string]bool
	failOn string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{seen: map[string]bool{}, votes: map[string]bool{}}
}

func (f *fakeRecorder) RecordEvent(_ context.Context, ev types.FeedbackEvent) (types.FeedbackEvent, error) {
	if ev.ID == f.failOn {
		return ev, errors.New("database is locked")
	}
	if ev.ArticleID != "kb-1" {
		return ev, fmt.Errorf("article %s: %w", ev.ArticleID, store.ErrNotFound)
	}
	if f.seen[ev.ID] {
		return ev, fmt.Errorf("feedback event %s: %w", ev.ID, store.ErrDuplicate)
	}
	f.seen[ev.ID] = true
	ev.Tracked = true
	if ev.EventType.IsVote() && ev.ActorID != "" {
		key := ev.ActorID + "|" + string(ev.EventType)
		ev.Tracked = !f.votes[key]
		f.votes[key] = true
	}
	return ev, nil
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "kb.feedback", Offset: offset, Value: []byte(value)}
}
