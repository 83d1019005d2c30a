//go:build integration

package redis_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hexredis "github.com/randomtoy/hex-backend/internal/adapters/redis"
	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/testing/suite"
)

func newRecord(createdAt time.Time) ports.GameRecord {
	return ports.GameRecord{
		ID: uuid.New(),
		Config: ports.GameConfig{
			Size: 9,
			TimeControl: timecontrol.Config{
				Kind:      timecontrol.KindByoYomi,
				InitialMs: 30000,
				Periods:   3,
				PeriodMs:  5000,
			},
		},
		Seats:        [2]ports.Seat{{PlayerID: "alice"}, {PlayerID: "bob"}},
		State:        game.StateCreated,
		Winner:       game.NoWinner,
		Moves:        []ports.MoveEntry{},
		CreatedAt:    createdAt,
		StateVersion: 1,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx, st := suite.New(t)
	store := hexredis.NewStore(st.Storage)

	// Given: a playing game with two moves
	base := time.Now().UTC().Truncate(time.Millisecond)
	rec := newRecord(base)
	rec.State = game.StatePlaying
	rec.StartedAt = &base
	rec.Moves = []ports.MoveEntry{
		{Move: "e5", PlayedAt: base.Add(time.Second)},
		{Move: "swap-pieces", PlayedAt: base.Add(2 * time.Second)},
	}
	rec.StateVersion = 3

	// When: it is saved and loaded back
	require.NoError(t, store.Save(ctx, rec))
	got, err := store.Load(ctx, rec.ID)

	// Then: every field survives
	require.NoError(t, err)
	assert.Equal(t, rec.Config, got.Config)
	assert.Equal(t, rec.Seats, got.Seats)
	assert.Equal(t, game.StatePlaying, got.State)
	assert.Equal(t, game.NoWinner, got.Winner)
	assert.Equal(t, 3, got.StateVersion)
	assert.True(t, got.CreatedAt.Equal(base))
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(base))
	assert.Nil(t, got.EndedAt)
	require.Len(t, got.Moves, 2)
	assert.Equal(t, "swap-pieces", got.Moves[1].Move)
	assert.True(t, got.Moves[1].PlayedAt.Equal(base.Add(2*time.Second)))
}

func TestStore_LoadNotFound(t *testing.T) {
	ctx, st := suite.New(t)
	store := hexredis.NewStore(st.Storage)

	_, err := store.Load(ctx, uuid.New())

	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStore_VersionConflict(t *testing.T) {
	ctx, st := suite.New(t)
	store := hexredis.NewStore(st.Storage)

	// Given: version 4 is stored
	rec := newRecord(time.Now().UTC())
	rec.StateVersion = 4
	require.NoError(t, store.Save(ctx, rec))

	// When: the same version is saved again, then an older one
	require.NoError(t, store.Save(ctx, rec))
	stale := rec
	stale.StateVersion = 3
	stale.Moves = []ports.MoveEntry{{Move: "a1", PlayedAt: time.Now().UTC()}}
	err := store.Save(ctx, stale)

	// Then: the older write is refused and nothing changes
	require.ErrorIs(t, err, ports.ErrVersionConflict)
	got, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StateVersion)
	assert.Empty(t, got.Moves)
}

func TestStore_ListActive(t *testing.T) {
	ctx, st := suite.New(t)
	store := hexredis.NewStore(st.Storage)

	base := time.Now().UTC()
	first := newRecord(base)
	second := newRecord(base.Add(time.Minute))
	finished := newRecord(base.Add(2 * time.Minute))
	for _, rec := range []ports.GameRecord{second, first, finished} {
		require.NoError(t, store.Save(ctx, rec))
	}

	// When: one game ends
	finished.State = game.StateCanceled
	finished.StateVersion = 2
	require.NoError(t, store.Save(ctx, finished))

	// Then: only the other two are listed, oldest first
	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
}
