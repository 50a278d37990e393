package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/handlers"
	"github.com/paygate/reconcile/internal/interfaces"
	"github.com/paygate/reconcile/internal/qr"
	"github.com/paygate/reconcile/internal/service"
	"github.com/paygate/reconcile/internal/telemetry"
)

func NewRouter(
	cfg *config.Config,
	charges interfaces.ChargeRepository,
	payments interfaces.PaymentRepository,
	gatewayClient *gateway.Client,
	verifier *gateway.Verifier,
	qrBuilder *qr.Builder,
	reconciler *service.Reconciler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-reconciler"})
	})

	checkoutHandler := handlers.NewCheckoutHandler(gatewayClient, qrBuilder, charges)
	r.POST("/checkout/:chargeID/gateway", checkoutHandler.CreateGatewayOrder)
	r.GET("/checkout/:chargeID/qr", checkoutHandler.QRContent)

	callbackHandler := handlers.NewCallbackHandler(verifier, reconciler, cfg.Gateway)
	r.GET("/payments/callback", callbackHandler.HandleGatewayCallback)

	paymentHandler := handlers.NewPaymentHandler(payments)
	r.GET("/payments/:id", paymentHandler.GetPayment)

	reconcileHandler := handlers.NewReconcileHandler(reconciler)
	r.POST("/reconcile/sweep", reconcileHandler.RunSweep)
	r.POST("/reconcile/users/:userID", reconcileHandler.CheckUser)

	return r
}
