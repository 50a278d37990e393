package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paygate/reconcile/internal/service"
	"github.com/paygate/reconcile/internal/telemetry"
)

const defaultPageSize = 50

type ReconcileHandler struct {
	reconciler *service.Reconciler
}

func NewReconcileHandler(reconciler *service.Reconciler) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

type sweepRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	PageSize int    `json:"page_size"`
}

func (req *sweepRequest) window() (time.Time, time.Time, int, bool) {
	to := time.Now()
	from := to.AddDate(0, 0, -1)
	if req.From != "" {
		parsed, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return from, to, 0, false
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return from, to, 0, false
		}
		to = parsed
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return from, to, pageSize, true
}

// RunSweep is the scheduler-facing trigger: fetch the window, apply every
// transaction with a labeled ownership token.
func (h *ReconcileHandler) RunSweep(c *gin.Context) {
	var req sweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	from, to, pageSize, ok := req.window()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
		return
	}

	result, err := h.reconciler.Sweep(c.Request.Context(), from, to, pageSize)
	if err != nil {
		telemetry.Logger.Warn("Ledger sweep aborted", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "bank ledger unavailable, sweep will retry next cycle",
			"partial": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// CheckUser re-runs reconciliation for one user's explicit claim.
func (h *ReconcileHandler) CheckUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req sweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	from, to, pageSize, ok := req.window()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
		return
	}

	result, err := h.reconciler.CheckUser(c.Request.Context(), userID, from, to, pageSize)
	if err != nil {
		telemetry.Logger.Warn("User reconciliation check aborted",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "bank ledger unavailable, please retry",
			"partial": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
