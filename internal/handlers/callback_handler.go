package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/service"
	"github.com/paygate/reconcile/internal/telemetry"
)

type CallbackHandler struct {
	verifier   *gateway.Verifier
	reconciler *service.Reconciler
	cfg        config.GatewayConfig
}

func NewCallbackHandler(verifier *gateway.Verifier, reconciler *service.Reconciler, cfg config.GatewayConfig) *CallbackHandler {
	return &CallbackHandler{verifier: verifier, reconciler: reconciler, cfg: cfg}
}

// HandleGatewayCallback receives the payer redirect from the gateway.
// Untrusted verdicts route exactly like Failed: the payer only ever sees
// "payment not confirmed", never a verification detail.
func (h *CallbackHandler) HandleGatewayCallback(c *gin.Context) {
	params := c.Request.URL.Query()
	verdict := h.verifier.Verify(params)
	telemetry.CallbackVerdicts.WithLabelValues(string(verdict.Kind)).Inc()

	if verdict.Kind != gateway.VerdictSuccess {
		if verdict.Kind == gateway.VerdictUntrusted {
			telemetry.Logger.Warn("Untrusted gateway callback",
				zap.String("app_trans_id", verdict.TransID),
				zap.String("query", params.Encode()),
			)
		}
		h.redirectError(c, verdict.TransID)
		return
	}

	// uid is our own passthrough param, appended to the redirect URL at
	// order creation. Without it the external finalizer owns application.
	uid, err := strconv.ParseInt(params.Get("uid"), 10, 64)
	if err != nil || uid <= 0 {
		h.redirectFinalize(c, verdict)
		return
	}

	outcome, err := h.reconciler.ApplyGateway(c.Request.Context(), verdict.TransID, verdict.Amount, uid)
	if err != nil {
		telemetry.Logger.Error("Error applying gateway payment",
			zap.String("app_trans_id", verdict.TransID),
			zap.Error(err),
		)
		h.redirectError(c, verdict.TransID)
		return
	}

	switch outcome {
	case models.OutcomeApplied, models.OutcomeAlreadyApplied:
		h.redirectFinalize(c, verdict)
	default:
		telemetry.Logger.Warn("Verified gateway payment did not match a charge",
			zap.String("app_trans_id", verdict.TransID),
			zap.Int64("user_id", uid),
			zap.String("outcome", string(outcome)),
		)
		h.redirectError(c, verdict.TransID)
	}
}

func (h *CallbackHandler) redirectFinalize(c *gin.Context, verdict gateway.Verdict) {
	c.Redirect(http.StatusFound, fmt.Sprintf("%s?amount=%d&apptransid=%s",
		h.cfg.FinalizeURL, verdict.Amount, url.QueryEscape(verdict.TransID)))
}

func (h *CallbackHandler) redirectError(c *gin.Context, transID string) {
	c.Redirect(http.StatusFound, fmt.Sprintf("%s?apptransid=%s",
		h.cfg.ErrorURL, url.QueryEscape(transID)))
}
