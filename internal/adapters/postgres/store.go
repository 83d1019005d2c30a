package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
)

const queryLoad = `
SELECT id, size, allow_swap, time_control, seats, state, outcome, winner,
       state_version, created_at, started_at, ended_at
FROM games
WHERE id = $1`

const queryListActive = `
SELECT id, size, allow_swap, time_control, seats, state, outcome, winner,
       state_version, created_at, started_at, ended_at
FROM games
WHERE state IN ('created', 'playing')
ORDER BY created_at ASC`

// queryUpsertGame only overwrites a row whose version is not newer.
const queryUpsertGame = `
INSERT INTO games
    (id, size, allow_swap, time_control, seats, state, outcome, winner,
     move_count, state_version, created_at, started_at, ended_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
ON CONFLICT (id) DO UPDATE SET
    state         = EXCLUDED.state,
    outcome       = EXCLUDED.outcome,
    winner        = EXCLUDED.winner,
    move_count    = EXCLUDED.move_count,
    state_version = EXCLUDED.state_version,
    started_at    = EXCLUDED.started_at,
    ended_at      = EXCLUDED.ended_at,
    updated_at    = NOW()
WHERE games.state_version <= EXCLUDED.state_version`

const queryTruncateMoves = `
DELETE FROM moves
WHERE game_id = $1 AND ply >= $2`

const queryUpsertMoves = `
INSERT INTO moves (game_id, ply, move, played_at)
SELECT $1, t.ord - 1, t.move, t.played_at
FROM unnest($2::text[], $3::timestamptz[]) WITH ORDINALITY AS t(move, played_at, ord)
ON CONFLICT (game_id, ply) DO UPDATE SET
    move      = EXCLUDED.move,
    played_at = EXCLUDED.played_at
WHERE (moves.move, moves.played_at) IS DISTINCT FROM (EXCLUDED.move, EXCLUDED.played_at)`

const queryMoves = `
SELECT game_id, move, played_at
FROM moves
WHERE game_id = ANY($1)
ORDER BY game_id, ply ASC`

// Store is a PostgreSQL-backed GameStore.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (ports.GameRecord, error) {
	rec, err := scanGame(s.pool.QueryRow(ctx, queryLoad, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.GameRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.GameRecord{}, err
	}
	moves, err := fetchMoves(ctx, s.pool, []uuid.UUID{id})
	if err != nil {
		return ports.GameRecord{}, err
	}
	rec.Moves = moves[id]
	return rec, nil
}

func (s *Store) ListActive(ctx context.Context) ([]ports.GameRecord, error) {
	rows, err := s.pool.Query(ctx, queryListActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.GameRecord
	var ids []uuid.UUID
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	moves, err := fetchMoves(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Moves = moves[out[i].ID]
	}
	return out, nil
}

// Save writes the game row and brings the moves table in line with
// rec.Moves in one transaction. Returns ErrVersionConflict when a newer
// version is already stored.
func (s *Store) Save(ctx context.Context, rec ports.GameRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var outcome *string
	if rec.Outcome != game.OutcomeNone {
		o := string(rec.Outcome)
		outcome = &o
	}

	tag, err := tx.Exec(ctx, queryUpsertGame,
		rec.ID,
		rec.Config.Size,
		rec.Config.AllowSwap,
		rec.Config.TimeControl,
		rec.Seats,
		string(rec.State),
		outcome,
		rec.Winner,
		len(rec.Moves),
		rec.StateVersion,
		rec.CreatedAt,
		rec.StartedAt,
		rec.EndedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, queryTruncateMoves, rec.ID, len(rec.Moves)); err != nil {
		return err
	}
	if len(rec.Moves) > 0 {
		tokens := make([]string, len(rec.Moves))
		playedAt := make([]time.Time, len(rec.Moves))
		for i, m := range rec.Moves {
			tokens[i] = m.Move
			playedAt[i] = m.PlayedAt
		}
		if _, err := tx.Exec(ctx, queryUpsertMoves, rec.ID, tokens, playedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// fetchMoves queries the ordered moves of every game in ids using any pgx
// querier (pool or tx).
func fetchMoves(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, ids []uuid.UUID) (map[uuid.UUID][]ports.MoveEntry, error) {
	rows, err := q.Query(ctx, queryMoves, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]ports.MoveEntry, len(ids))
	for _, id := range ids {
		out[id] = []ports.MoveEntry{}
	}
	for rows.Next() {
		var (
			id    uuid.UUID
			entry ports.MoveEntry
		)
		if err := rows.Scan(&id, &entry.Move, &entry.PlayedAt); err != nil {
			return nil, err
		}
		entry.PlayedAt = entry.PlayedAt.UTC()
		out[id] = append(out[id], entry)
	}
	return out, rows.Err()
}

// scanGame reads a game row from either a pgx.Row or pgx.Rows.
func scanGame(s interface {
	Scan(dest ...any) error
}) (ports.GameRecord, error) {
	var (
		rec        ports.GameRecord
		tc         timecontrol.Config
		stateStr   string
		outcomeStr *string
		startedAt  *time.Time
		endedAt    *time.Time
	)

	err := s.Scan(
		&rec.ID, &rec.Config.Size, &rec.Config.AllowSwap, &tc, &rec.Seats,
		&stateStr, &outcomeStr, &rec.Winner,
		&rec.StateVersion, &rec.CreatedAt, &startedAt, &endedAt,
	)
	if err != nil {
		return ports.GameRecord{}, err
	}

	rec.Config.TimeControl = tc
	rec.State = game.State(stateStr)
	if outcomeStr != nil {
		rec.Outcome = game.Outcome(*outcomeStr)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if startedAt != nil {
		t := startedAt.UTC()
		rec.StartedAt = &t
	}
	if endedAt != nil {
		t := endedAt.UTC()
		rec.EndedAt = &t
	}
	return rec, nil
}
