package models

import "time"

type ChargeStatus string

const (
	ChargeOpen      ChargeStatus = "OPEN"
	ChargeConfirmed ChargeStatus = "CONFIRMED"
	ChargeCancelled ChargeStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type PaymentSource string

const (
	SourceGateway      PaymentSource = "GATEWAY"
	SourceBankTransfer PaymentSource = "BANK_TRANSFER"
)

// PendingCharge is an order or booking awaiting payment confirmation.
// At most one OPEN charge exists per user; the checkout service enforces that.
type PendingCharge struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Amount    int64        `json:"amount"` // minor currency units, VND has none
	Status    ChargeStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// BankTransaction is one row of the external bank statement feed.
// Immutable once fetched; the feed is re-read each poll cycle.
type BankTransaction struct {
	TransactionID string    `json:"id"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference"`
	OccurredAt    time.Time `json:"when"`
}

// PaymentRecord is the internal record of money received. The unique
// external transaction id is what makes reconciliation at-most-once.
type PaymentRecord struct {
	ID            string        `json:"id"`
	Amount        int64         `json:"amount"`
	Status        PaymentStatus `json:"status"`
	Source        PaymentSource `json:"source"`
	ExternalTxnID string        `json:"external_txn_id"`
	UserID        int64         `json:"user_id"`
	CreatedAt     time.Time     `json:"created_at"`
	ProcessedAt   time.Time     `json:"processed_at"`
}

// PaymentDetail attributes a payment record to a pending charge. Current
// policy is full-amount attribution, one detail per completed payment.
type PaymentDetail struct {
	PaymentID string `json:"payment_id"`
	ChargeID  int64  `json:"charge_id"`
	Amount    int64  `json:"amount"`
}

type ReconcileOutcome string

const (
	OutcomeApplied        ReconcileOutcome = "APPLIED"
	OutcomeAlreadyApplied ReconcileOutcome = "ALREADY_APPLIED"
	OutcomeNoMatch        ReconcileOutcome = "NO_MATCH"
	OutcomeRejected       ReconcileOutcome = "REJECTED"
)

// ConfirmedEvent is published to Kafka after a charge is confirmed.
type ConfirmedEvent struct {
	PaymentID     string        `json:"payment_id"`
	ChargeID      int64         `json:"charge_id"`
	UserID        int64         `json:"user_id"`
	Amount        int64         `json:"amount"`
	Source        PaymentSource `json:"source"`
	ExternalTxnID string        `json:"external_txn_id"`
	Timestamp     time.Time     `json:"timestamp"`
}

// FinalizeRequest is sent over NATS request/reply to the fulfillment
// service once a gateway payment has been applied.
type FinalizeRequest struct {
	ChargeID  int64  `json:"charge_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

type FinalizeResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
