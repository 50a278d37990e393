package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/interfaces"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/qr"
	"github.com/paygate/reconcile/internal/telemetry"
)

type CheckoutHandler struct {
	gatewayClient *gateway.Client
	qrBuilder     *qr.Builder
	charges       interfaces.ChargeRepository
}

func NewCheckoutHandler(gatewayClient *gateway.Client, qrBuilder *qr.Builder, charges interfaces.ChargeRepository) *CheckoutHandler {
	return &CheckoutHandler{
		gatewayClient: gatewayClient,
		qrBuilder:     qrBuilder,
		charges:       charges,
	}
}

// CreateGatewayOrder submits a signed order for the charge and relays the
// gateway's response body untouched; the client follows its order_url.
func (h *CheckoutHandler) CreateGatewayOrder(c *gin.Context) {
	chargeID, err := strconv.ParseInt(c.Param("chargeID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
		return
	}

	result, err := h.gatewayClient.CreateOrder(c.Request.Context(), chargeID)
	switch {
	case errors.Is(err, gateway.ErrChargeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "charge not found or not payable"})
		return
	case errors.Is(err, gateway.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "charge amount must be positive"})
		return
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		telemetry.Logger.Warn("Gateway unavailable", zap.Int64("charge_id", chargeID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable, please retry"})
		return
	case err != nil:
		telemetry.Logger.Error("Error creating gateway order", zap.Int64("charge_id", chargeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment order"})
		return
	}

	telemetry.GatewayOrdersCreated.Inc()
	c.Header("X-App-Trans-Id", result.TransID)
	c.Data(http.StatusOK, "application/json", result.RawResponse)
}

// QRContent returns the manual-transfer payload for a charge: the provider
// data-URI when the image API cooperates, always the URL form as fallback.
func (h *CheckoutHandler) QRContent(c *gin.Context) {
	chargeID, err := strconv.ParseInt(c.Param("chargeID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
		return
	}

	charge, err := h.charges.GetByID(c.Request.Context(), chargeID)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "charge not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch charge"})
		return
	}
	if charge.Status != models.ChargeOpen {
		c.JSON(http.StatusNotFound, gin.H{"error": "charge not found or not payable"})
		return
	}

	// The transfer note is what reconciliation later matches on.
	content := fmt.Sprintf("UserID%d", charge.UserID)

	c.JSON(http.StatusOK, gin.H{
		"charge_id":   charge.ID,
		"amount":      charge.Amount,
		"content":     content,
		"qr_data_uri": h.qrBuilder.BuildDataURI(c.Request.Context(), charge.Amount, content),
		"qr_url":      h.qrBuilder.BuildURL(charge.Amount, content),
	})
}
