package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, map_id, label)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.MapID, sess.Label)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends an event record.
// Uses ON CONFLICT(session, seq) DO NOTHING so re-delivery is harmless.
// The session must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, rec EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session, seq, map_id, kind, source_id, source_kind, old, new)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`,
		rec.Session,
		rec.Seq,
		rec.MapID,
		rec.Kind,
		int64(rec.SourceID),
		rec.SourceKind,
		nullable(rec.Old),
		nullable(rec.New),
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
