package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qrave1/MeshRoom/internal/domain/models"
)

// MembershipRepository - журнал входов и выходов участников.
// Используется только для аудита, комнаты из него не восстанавливаются.
type MembershipRepository interface {
	Observe(ctx context.Context, ev models.MembershipEvent) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.MembershipEvent, error)
	Ping(ctx context.Context) error
}

type membershipRepo struct {
	db *sqlx.DB
}

func NewMembershipRepo(db *sqlx.DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Observe(ctx context.Context, ev models.MembershipEvent) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO membership_events (room_id, connection_id, identity, kind, occurred_at)
		VALUES (:room_id, :connection_id, :identity, :kind, :occurred_at)`,
		ev,
	)
	if err != nil {
		return fmt.Errorf("insert membership event: %w", err)
	}

	return nil
}

func (r *membershipRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.MembershipEvent, error) {
	var list []models.MembershipEvent

	err := r.db.SelectContext(
		ctx,
		&list,
		`SELECT room_id, connection_id, identity, kind, occurred_at
		FROM membership_events
		WHERE room_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		roomID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select membership events: %w", err)
	}

	return list, nil
}

func (r *membershipRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
