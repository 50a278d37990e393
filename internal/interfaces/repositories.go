package interfaces

import (
	"context"
	"errors"

	"github.com/paygate/reconcile/internal/models"
)

// Returned by PaymentRepository.ApplyCompleted; both leave the store
// untouched.
var (
	// ErrDuplicateTxn means the external transaction id was already
	// applied. Callers treat it as an idempotent no-op, not a failure.
	ErrDuplicateTxn = errors.New("external transaction already applied")
	// ErrChargeNotOpen means the target charge was confirmed or cancelled
	// before this application won the race.
	ErrChargeNotOpen = errors.New("pending charge is not open")
)

// ChargeRepository defines the contract for pending charge data access
type ChargeRepository interface {
	GetByID(ctx context.Context, id int64) (*models.PendingCharge, error)
	GetOpenByUser(ctx context.Context, userID int64) (*models.PendingCharge, error)
}

// PaymentRepository defines the contract for payment record data access.
// ApplyCompleted must write the payment record, its detail row and the
// charge OPEN -> CONFIRMED transition as a single atomic unit.
type PaymentRepository interface {
	GetByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	GetByExternalTxnID(ctx context.Context, txnID string) (*models.PaymentRecord, error)
	ApplyCompleted(ctx context.Context, record *models.PaymentRecord, chargeID int64) error
}
