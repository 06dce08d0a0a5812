package waitqueue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readyFlag struct{ ready bool }

func (r *readyFlag) IsReady() bool { return r.ready }

type recordingSender struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{messages: make(map[string][]string)}
}

func (s *recordingSender) SendDirect(ctx context.Context, user, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[user] = append(s.messages[user], msg)
	return nil
}

func (s *recordingSender) count(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[user])
}

func entry(user string) Entry {
	return Entry{ChatUserID: user, Wallet: "0xabc", RequestedAt: time.Now().UTC()}
}

func TestDrainWaitsForCache(t *testing.T) {
	ready := &readyFlag{}
	processed := 0
	q := New(ready, func(ctx context.Context, e Entry) error {
		processed++
		return nil
	}, newRecordingSender(), time.Second, zerolog.New(io.Discard))

	q.Add(entry("u1"))
	q.Drain(context.Background())
	assert.Equal(t, 0, processed, "cold cache must not drain")
	assert.Equal(t, 1, q.Len())

	ready.ready = true
	q.Drain(context.Background())
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, q.Len())
}

func TestDrainProcessesEachUserOnce(t *testing.T) {
	ready := &readyFlag{ready: true}
	var calls []string
	q := New(ready, func(ctx context.Context, e Entry) error {
		calls = append(calls, e.ChatUserID)
		return nil
	}, newRecordingSender(), time.Second, zerolog.New(io.Discard))

	q.Add(entry("u1"))
	q.Add(entry("u2"))
	q.Add(entry("u1")) // duplicate keeps the earlier entry

	q.Drain(context.Background())
	require.Len(t, calls, 2)

	q.Drain(context.Background())
	assert.Len(t, calls, 2, "drained users must not be retried implicitly")
}

func TestPerUserFailureSendsErrorAndDropsOnlyThatUser(t *testing.T) {
	ready := &readyFlag{ready: true}
	sender := newRecordingSender()
	q := New(ready, func(ctx context.Context, e Entry) error {
		if e.ChatUserID == "bad" {
			return errors.New("positions fetch failed")
		}
		return nil
	}, sender, time.Second, zerolog.New(io.Discard))

	q.Add(entry("bad"))
	q.Add(entry("good"))
	q.Drain(context.Background())

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, sender.count("bad"), "failed user gets a recoverable error message")
	assert.Equal(t, 0, sender.count("good"))
}
