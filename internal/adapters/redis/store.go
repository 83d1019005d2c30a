package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/randomtoy/hex-backend/internal/ports"
)

const (
	gameKeyPrefix = "game:"
	activeKey     = "games:active"
)

// saveScript writes the record unless a newer version is stored, and keeps
// the active set in sync. Returns 0 on a version conflict.
var saveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
if ARGV[3] == '1' then
	redis.call('ZADD', KEYS[3], ARGV[4], ARGV[5])
else
	redis.call('ZREM', KEYS[3], ARGV[5])
end
return 1
`)

// Store keeps each game as one JSON document with its version alongside,
// plus a sorted set of active game ids scored by creation time.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func gameKey(id uuid.UUID) string    { return gameKeyPrefix + id.String() }
func versionKey(id uuid.UUID) string { return gameKeyPrefix + id.String() + ":version" }

func (s *Store) Load(ctx context.Context, id uuid.UUID) (ports.GameRecord, error) {
	raw, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.GameRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.GameRecord{}, fmt.Errorf("failed to get game: %w", err)
	}
	return decode(raw)
}

func (s *Store) Save(ctx context.Context, rec ports.GameRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	active := "0"
	if rec.Active() {
		active = "1"
	}
	res, err := saveScript.Run(ctx, s.client,
		[]string{gameKey(rec.ID), versionKey(rec.ID), activeKey},
		raw, rec.StateVersion, active, rec.CreatedAt.UnixMilli(), rec.ID.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	if res == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context) ([]ports.GameRecord, error) {
	ids, err := s.client.ZRange(ctx, activeKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active games: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKeyPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active games: %w", err)
	}

	out := make([]ports.GameRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decode(raw []byte) (ports.GameRecord, error) {
	var rec ports.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ports.GameRecord{}, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	if rec.Moves == nil {
		rec.Moves = []ports.MoveEntry{}
	}
	return rec, nil
}
