package storage

import (
	"context"
	"time"
)

// SetNow fija el reloj del store en tests.
func (s *SQLiteStorage) SetNow(now func() time.Time) {
	s.now = now
}

// Exec corre SQL crudo contra la base, para preparar filas corruptas.
func (s *SQLiteStorage) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
