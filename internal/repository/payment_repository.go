package repository

import (
	"context"
	"database/sql"

	"github.com/paygate/reconcile/internal/interfaces"
	"github.com/paygate/reconcile/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pending_charges (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(36) PRIMARY KEY,
			amount BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			source VARCHAR(20) NOT NULL,
			external_txn_id VARCHAR(255) NOT NULL UNIQUE,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payment_details (
			payment_id VARCHAR(36) NOT NULL REFERENCES payments(id),
			charge_id BIGINT NOT NULL REFERENCES pending_charges(id),
			amount BIGINT NOT NULL,
			PRIMARY KEY (payment_id, charge_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_charges_user_status ON pending_charges(user_id, status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, amount, status, source, external_txn_id, user_id, created_at, processed_at
		FROM payments WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Amount, &rec.Status, &rec.Source, &rec.ExternalTxnID,
		&rec.UserID, &rec.CreatedAt, &rec.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PaymentRepository) GetByExternalTxnID(ctx context.Context, txnID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, amount, status, source, external_txn_id, user_id, created_at, processed_at
		FROM payments WHERE external_txn_id = $1
	`, txnID).Scan(&rec.ID, &rec.Amount, &rec.Status, &rec.Source, &rec.ExternalTxnID,
		&rec.UserID, &rec.CreatedAt, &rec.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ApplyCompleted writes the payment, its detail and the charge confirmation
// in one transaction. The UNIQUE constraint on external_txn_id is the
// at-most-once gate: a conflicting insert affects zero rows and the whole
// unit rolls back as ErrDuplicateTxn.
func (r *PaymentRepository) ApplyCompleted(ctx context.Context, record *models.PaymentRecord, chargeID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, amount, status, source, external_txn_id, user_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_txn_id) DO NOTHING
	`, record.ID, record.Amount, record.Status, record.Source, record.ExternalTxnID,
		record.UserID, record.CreatedAt, record.ProcessedAt)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrDuplicateTxn
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_details (payment_id, charge_id, amount)
		VALUES ($1, $2, $3)
	`, record.ID, chargeID, record.Amount); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE pending_charges SET status = $1
		WHERE id = $2 AND status = $3
	`, models.ChargeConfirmed, chargeID, models.ChargeOpen)
	if err != nil {
		return err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrChargeNotOpen
	}

	return tx.Commit()
}
