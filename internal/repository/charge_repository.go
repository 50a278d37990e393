package repository

import (
	"context"
	"database/sql"

	"github.com/paygate/reconcile/internal/models"
)

type ChargeRepository struct {
	db *sql.DB
}

func NewChargeRepository(db *sql.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

func (r *ChargeRepository) GetByID(ctx context.Context, id int64) (*models.PendingCharge, error) {
	var charge models.PendingCharge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, status, created_at
		FROM pending_charges WHERE id = $1
	`, id).Scan(&charge.ID, &charge.UserID, &charge.Amount, &charge.Status, &charge.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// GetOpenByUser returns the user's single open charge. The checkout service
// guarantees at most one exists, so LIMIT 1 is a safety net, not a policy.
func (r *ChargeRepository) GetOpenByUser(ctx context.Context, userID int64) (*models.PendingCharge, error) {
	var charge models.PendingCharge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, status, created_at
		FROM pending_charges WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1
	`, userID, models.ChargeOpen).Scan(&charge.ID, &charge.UserID, &charge.Amount, &charge.Status, &charge.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &charge, nil
}
