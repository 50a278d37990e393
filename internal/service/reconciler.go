package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/paygate/reconcile/internal/interfaces"
	"github.com/paygate/reconcile/internal/ledger"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/telemetry"
)

// AmountTolerance absorbs bank-side rounding and fee artifacts. A
// transaction within 1000 minor units of the expected amount still matches.
const AmountTolerance = 1000

// userIDLabel is the labeled ownership token embedded in transfer notes.
var userIDLabel = regexp.MustCompile(`UserID(\d+)`)

type Reconciler struct {
	payments    interfaces.PaymentRepository
	charges     interfaces.ChargeRepository
	fetcher     *ledger.Fetcher
	redisClient *redis.Client
	nc          *nats.Conn
	kafkaWriter *kafka.Writer
	logger      *zap.Logger
}

func NewReconciler(
	payments interfaces.PaymentRepository,
	charges interfaces.ChargeRepository,
	fetcher *ledger.Fetcher,
	redisClient *redis.Client,
	nc *nats.Conn,
	kafkaWriter *kafka.Writer,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		payments:    payments,
		charges:     charges,
		fetcher:     fetcher,
		redisClient: redisClient,
		nc:          nc,
		kafkaWriter: kafkaWriter,
		logger:      logger,
	}
}

// Apply reconciles one observed bank transaction against the claimed
// user's open charge. Safe to call repeatedly for the same transaction;
// re-application resolves to AlreadyApplied without touching state.
func (r *Reconciler) Apply(ctx context.Context, txn models.BankTransaction, claimedUserID int64) (models.ReconcileOutcome, error) {
	if txn.TransactionID == "" || txn.Amount <= 0 {
		return r.outcome(models.OutcomeRejected), nil
	}

	// Idempotency gate. The unique constraint in ApplyCompleted closes
	// the race this read leaves open.
	_, err := r.payments.GetByExternalTxnID(ctx, txn.TransactionID)
	if err == nil {
		return r.outcome(models.OutcomeAlreadyApplied), nil
	}
	if err != sql.ErrNoRows {
		return models.OutcomeRejected, err
	}

	charge, err := r.charges.GetOpenByUser(ctx, claimedUserID)
	if err == sql.ErrNoRows {
		return r.outcome(models.OutcomeNoMatch), nil
	}
	if err != nil {
		return models.OutcomeRejected, err
	}

	diff := txn.Amount - charge.Amount
	if diff < 0 {
		diff = -diff
	}
	if diff > AmountTolerance {
		return r.outcome(models.OutcomeNoMatch), nil
	}

	if !OwnedBy(txn, claimedUserID) {
		return r.outcome(models.OutcomeNoMatch), nil
	}

	record := &models.PaymentRecord{
		ID:            uuid.NewString(),
		Amount:        txn.Amount,
		Status:        models.PaymentCompleted,
		Source:        models.SourceBankTransfer,
		ExternalTxnID: txn.TransactionID,
		UserID:        claimedUserID,
		CreatedAt:     time.Now(),
		ProcessedAt:   time.Now(),
	}

	if err := r.payments.ApplyCompleted(ctx, record, charge.ID); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateTxn) {
			return r.outcome(models.OutcomeAlreadyApplied), nil
		}
		if errors.Is(err, interfaces.ErrChargeNotOpen) {
			return r.outcome(models.OutcomeNoMatch), nil
		}
		return models.OutcomeRejected, err
	}

	r.logger.Info("Bank transaction applied",
		zap.String("external_txn_id", txn.TransactionID),
		zap.Int64("charge_id", charge.ID),
		zap.Int64("user_id", claimedUserID),
		zap.Int64("amount", txn.Amount),
	)

	r.publishConfirmed(ctx, record, charge.ID)
	return r.outcome(models.OutcomeApplied), nil
}

// ApplyGateway records a checksum-verified gateway payment against the
// user's open charge. Same idempotency and atomicity rules as Apply; the
// ownership token check is skipped because the claim came from the
// verified redirect, not a shared bank feed.
func (r *Reconciler) ApplyGateway(ctx context.Context, transID string, amount, userID int64) (models.ReconcileOutcome, error) {
	if transID == "" || amount <= 0 {
		return r.outcome(models.OutcomeRejected), nil
	}

	_, err := r.payments.GetByExternalTxnID(ctx, transID)
	if err == nil {
		return r.outcome(models.OutcomeAlreadyApplied), nil
	}
	if err != sql.ErrNoRows {
		return models.OutcomeRejected, err
	}

	charge, err := r.charges.GetOpenByUser(ctx, userID)
	if err == sql.ErrNoRows {
		return r.outcome(models.OutcomeNoMatch), nil
	}
	if err != nil {
		return models.OutcomeRejected, err
	}

	diff := amount - charge.Amount
	if diff < 0 {
		diff = -diff
	}
	if diff > AmountTolerance {
		return r.outcome(models.OutcomeNoMatch), nil
	}

	record := &models.PaymentRecord{
		ID:            uuid.NewString(),
		Amount:        amount,
		Status:        models.PaymentCompleted,
		Source:        models.SourceGateway,
		ExternalTxnID: transID,
		UserID:        userID,
		CreatedAt:     time.Now(),
		ProcessedAt:   time.Now(),
	}

	if err := r.payments.ApplyCompleted(ctx, record, charge.ID); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateTxn) {
			return r.outcome(models.OutcomeAlreadyApplied), nil
		}
		if errors.Is(err, interfaces.ErrChargeNotOpen) {
			return r.outcome(models.OutcomeNoMatch), nil
		}
		return models.OutcomeRejected, err
	}

	r.logger.Info("Gateway payment applied",
		zap.String("app_trans_id", transID),
		zap.Int64("charge_id", charge.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
	)

	r.publishConfirmed(ctx, record, charge.ID)
	r.requestFulfillment(charge.ID, record)
	return r.outcome(models.OutcomeApplied), nil
}

// SweepResult summarises one reconciliation pass over the bank feed.
type SweepResult struct {
	Fetched  int                             `json:"fetched"`
	Skipped  int                             `json:"skipped"`
	Outcomes map[models.ReconcileOutcome]int `json:"outcomes"`
	Errors   int                             `json:"errors"`
}

// Sweep pages through the bank feed for the date range and applies every
// transaction carrying a labeled ownership token. Errors are isolated per
// transaction: the feed is re-read next cycle, so nothing is lost.
func (r *Reconciler) Sweep(ctx context.Context, from, to time.Time, pageSize int) (*SweepResult, error) {
	result := &SweepResult{Outcomes: make(map[models.ReconcileOutcome]int)}

	for page := 1; ; page++ {
		txns, err := r.fetcher.Fetch(ctx, from, to, page, pageSize)
		if err != nil {
			// Provider errors abort the sweep, not the system; the
			// next poll covers the same window.
			return result, err
		}
		if len(txns) == 0 {
			break
		}
		result.Fetched += len(txns)

		for _, txn := range txns {
			claimed, ok := ClaimedUserID(txn)
			if !ok {
				result.Outcomes[models.OutcomeNoMatch]++
				continue
			}

			if !r.acquireLock(ctx, txn.TransactionID) {
				result.Skipped++
				continue
			}

			outcome, err := r.Apply(ctx, txn, claimed)
			r.releaseLock(ctx, txn.TransactionID)
			if err != nil {
				result.Errors++
				r.logger.Error("Error applying bank transaction",
					zap.String("external_txn_id", txn.TransactionID),
					zap.Error(err),
				)
				continue
			}
			result.Outcomes[outcome]++
		}

		if len(txns) < pageSize {
			break
		}
	}

	return result, nil
}

// CheckUser reconciles the feed window against one user's explicit claim
// ("I already transferred, check again"). Unlike Sweep, the claimed id is
// fixed, so transactions carrying only the bare numeric form can match.
func (r *Reconciler) CheckUser(ctx context.Context, userID int64, from, to time.Time, pageSize int) (*SweepResult, error) {
	result := &SweepResult{Outcomes: make(map[models.ReconcileOutcome]int)}

	for page := 1; ; page++ {
		txns, err := r.fetcher.Fetch(ctx, from, to, page, pageSize)
		if err != nil {
			return result, err
		}
		if len(txns) == 0 {
			break
		}
		result.Fetched += len(txns)

		for _, txn := range txns {
			if !r.acquireLock(ctx, txn.TransactionID) {
				result.Skipped++
				continue
			}
			outcome, err := r.Apply(ctx, txn, userID)
			r.releaseLock(ctx, txn.TransactionID)
			if err != nil {
				result.Errors++
				r.logger.Error("Error applying bank transaction",
					zap.String("external_txn_id", txn.TransactionID),
					zap.Error(err),
				)
				continue
			}
			result.Outcomes[outcome]++
		}

		if len(txns) < pageSize {
			break
		}
	}

	return result, nil
}

// OwnedBy reports whether the transaction's free text carries the claimed
// user's identifier, in either accepted form: the labeled token
// ("UserID42") or the bare numeric id as a substring. The bare form can
// false-positive on ids that prefix another id; both forms are kept for
// parity with the live bank feed.
func OwnedBy(txn models.BankTransaction, userID int64) bool {
	id := strconv.FormatInt(userID, 10)
	for _, text := range []string{txn.Description, txn.Reference} {
		if strings.Contains(text, "UserID"+id) || strings.Contains(text, id) {
			return true
		}
	}
	return false
}

// ClaimedUserID extracts the labeled ownership token from a transaction's
// free text. Only the labeled form can drive discovery during a sweep; the
// bare numeric form is checked only against an explicit claim.
func ClaimedUserID(txn models.BankTransaction) (int64, bool) {
	for _, text := range []string{txn.Description, txn.Reference} {
		if m := userIDLabel.FindStringSubmatch(text); m != nil {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

func (r *Reconciler) outcome(o models.ReconcileOutcome) models.ReconcileOutcome {
	telemetry.ReconcileOutcomes.WithLabelValues(string(o)).Inc()
	return o
}

func (r *Reconciler) acquireLock(ctx context.Context, txnID string) bool {
	if r.redisClient == nil {
		return true
	}
	lockKey := fmt.Sprintf("reconcile_lock:%s", txnID)
	return r.redisClient.SetNX(ctx, lockKey, "1", 30*time.Second).Val()
}

func (r *Reconciler) releaseLock(ctx context.Context, txnID string) {
	if r.redisClient == nil {
		return
	}
	r.redisClient.Del(ctx, fmt.Sprintf("reconcile_lock:%s", txnID))
}

func (r *Reconciler) publishConfirmed(ctx context.Context, record *models.PaymentRecord, chargeID int64) {
	if r.kafkaWriter == nil {
		return
	}
	event := models.ConfirmedEvent{
		PaymentID:     record.ID,
		ChargeID:      chargeID,
		UserID:        record.UserID,
		Amount:        record.Amount,
		Source:        record.Source,
		ExternalTxnID: record.ExternalTxnID,
		Timestamp:     time.Now(),
	}
	eventJSON, _ := json.Marshal(event)

	if err := r.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ExternalTxnID),
		Value: eventJSON,
	}); err != nil {
		r.logger.Warn("Failed to publish confirmed event",
			zap.String("payment_id", record.ID),
			zap.Error(err),
		)
	}
}

// requestFulfillment tells the order service a gateway payment landed. The
// money state is already committed, so a timeout here is logged, not
// propagated.
func (r *Reconciler) requestFulfillment(chargeID int64, record *models.PaymentRecord) {
	if r.nc == nil {
		return
	}
	reqJSON, _ := json.Marshal(models.FinalizeRequest{
		ChargeID:  chargeID,
		PaymentID: record.ID,
		Amount:    record.Amount,
	})

	msg, err := r.nc.Request("order.finalize", reqJSON, 5*time.Second)
	if err != nil {
		r.logger.Warn("Fulfillment request timeout",
			zap.Int64("charge_id", chargeID),
			zap.Error(err),
		)
		return
	}

	var resp models.FinalizeResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil || !resp.Accepted {
		r.logger.Warn("Fulfillment not accepted",
			zap.Int64("charge_id", chargeID),
			zap.String("reason", resp.Reason),
		)
	}
}
