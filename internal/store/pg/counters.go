package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vidunsterling-afk/itroom-sub000/internal/sequence"
)

var _ sequence.CounterStore = (*Store)(nil)

// IncrementCounter bumps the series in one statement; the row lock taken by the upsert
// serializes concurrent callers so each observes a distinct value.
func (s *Store) IncrementCounter(ctx context.Context, key string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		insert into sequence_counters (key, seq, updated_at)
		values ($1, 1, now())
		on conflict (key) do update
		set seq = sequence_counters.seq + 1, updated_at = now()
		returning seq
	`, key).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) CurrentCounter(ctx context.Context, key string) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `select seq from sequence_counters where key = $1`, key).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}
