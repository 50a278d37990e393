package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paygate/reconcile/internal/interfaces"
)

type PaymentHandler struct {
	payments interfaces.PaymentRepository
}

func NewPaymentHandler(payments interfaces.PaymentRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID := c.Param("id")

	record, err := h.payments.GetByID(c.Request.Context(), paymentID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":      record.ID,
		"amount":          record.Amount,
		"status":          record.Status,
		"source":          record.Source,
		"external_txn_id": record.ExternalTxnID,
		"created_at":      record.CreatedAt,
		"processed_at":    record.ProcessedAt,
	})
}
