package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// PresenceRepository зеркалит состав комнат в redis, ключ room:<id>:peers.
// Источник истины - память процесса, redis только для внешних наблюдателей.
type PresenceRepository interface {
	Observe(ctx context.Context, ev models.MembershipEvent) error
	Ping(ctx context.Context) error
}

type presenceRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceRepo(client *redis.Client, ttl time.Duration) PresenceRepository {
	return &presenceRepo{client: client, ttl: ttl}
}

func peersKey(roomID string) string {
	return fmt.Sprintf("room:%s:peers", roomID)
}

func (r *presenceRepo) Observe(ctx context.Context, ev models.MembershipEvent) error {
	key := peersKey(ev.RoomID)
	member := ev.ConnectionID.String()

	switch ev.Kind {
	case models.MembershipJoin:
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, key, member)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("add room peer: %w", err)
		}

	default:
		if err := r.client.SRem(ctx, key, member).Err(); err != nil {
			return fmt.Errorf("remove room peer: %w", err)
		}
	}

	return nil
}

func (r *presenceRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
