package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/heuer/mappa/internal/tm"
)

// SessionGenerator produces journal session ids.
type SessionGenerator interface {
	Generate() string
}

type uuidSessions struct{}

func (uuidSessions) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Journal appends every delivered event of one topic map to the store.
//
// Bus handlers cannot fail, so write errors are logged and counted rather
// than returned. The journal is an audit trail; maps are never rebuilt
// from it.
type Journal struct {
	store   *Store
	m       *tm.TopicMap
	session string
	ctx     context.Context
	logger  *slog.Logger
	sub     tm.Subscription

	written atomic.Int64
	failed  atomic.Int64
}

// JournalOption configures a Journal.
type JournalOption func(*journalConfig)

type journalConfig struct {
	logger   *slog.Logger
	label    string
	sessions SessionGenerator
}

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) JournalOption {
	return func(c *journalConfig) { c.logger = l }
}

// WithLabel stores a human-readable label with the session.
func WithLabel(label string) JournalOption {
	return func(c *journalConfig) { c.label = label }
}

// WithSessionGenerator overrides the UUIDv7 session ids. Used in tests.
func WithSessionGenerator(g SessionGenerator) JournalOption {
	return func(c *journalConfig) { c.sessions = g }
}

// Attach starts a journaling session for m and subscribes to every event
// kind. ctx bounds every write of the session.
func (s *Store) Attach(ctx context.Context, m *tm.TopicMap, opts ...JournalOption) (*Journal, error) {
	cfg := journalConfig{logger: slog.Default(), sessions: uuidSessions{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	j := &Journal{
		store:   s,
		m:       m,
		session: cfg.sessions.Generate(),
		ctx:     ctx,
		logger:  cfg.logger,
	}
	if err := s.WriteSession(ctx, Session{ID: j.session, MapID: m.BaseLocator(), Label: cfg.label}); err != nil {
		return nil, fmt.Errorf("attach journal: %w", err)
	}
	j.sub = m.Bus().SubscribeAll(j.record)
	return j, nil
}

// Session returns the session id.
func (j *Journal) Session() string { return j.session }

// Written returns the number of events appended.
func (j *Journal) Written() int64 { return j.written.Load() }

// Failed returns the number of events that could not be appended.
func (j *Journal) Failed() int64 { return j.failed.Load() }

// Close stops journaling. The store stays open.
func (j *Journal) Close() {
	j.m.Bus().Unsubscribe(j.sub)
}

func (j *Journal) record(e tm.Event) {
	rec, err := recordOf(j.session, j.m.BaseLocator(), e)
	if err == nil {
		err = j.store.WriteEvent(j.ctx, rec)
	}
	if err != nil {
		j.failed.Add(1)
		// Log and continue - the mutation itself already succeeded
		j.logger.Error("journal write failed",
			"session", j.session,
			"seq", e.Seq,
			"kind", e.Kind.String(),
			"error", err)
		return
	}
	j.written.Add(1)
}
