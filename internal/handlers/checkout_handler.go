package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	awsx "github.com/julddmedia/storefront-checkout/internal/aws"
	"github.com/julddmedia/storefront-checkout/internal/checkout"
	"github.com/julddmedia/storefront-checkout/internal/gateway"
	"github.com/julddmedia/storefront-checkout/internal/idempotency"
	"github.com/julddmedia/storefront-checkout/internal/orders"
	"github.com/julddmedia/storefront-checkout/internal/settlement"
	"github.com/julddmedia/storefront-checkout/internal/validation"
)

// HandlerConfig groups dependencies for the checkout and settlement routes.
type HandlerConfig struct {
	DynamoDBClient   awsx.DynamoDBAPI
	SQSClient        awsx.SQSAPI
	CloudWatchClient awsx.CloudWatchAPI
	Gateway          gateway.Client

	OrdersTable      string
	IdempotencyTable string
	QueueURL         string
	TTLWindow        time.Duration
	MetricsNamespace string

	DefaultSuccessURL string
	DefaultCancelURL  string
}

// RegisterCheckoutRoutes wires the storefront routes: session creation, the
// settlement webhook, and the receipt-page order query.
func RegisterCheckoutRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	orderStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	idempStore := idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow)

	var publisher *awsx.Publisher
	if cfg.SQSClient != nil && cfg.QueueURL != "" {
		publisher = awsx.NewPublisher(cfg.SQSClient, cfg.QueueURL)
	}
	var metrics *awsx.Metrics
	if cfg.CloudWatchClient != nil {
		metrics = awsx.NewMetrics(cfg.CloudWatchClient, cfg.MetricsNamespace)
	}

	svc := checkout.NewService(cfg.Gateway, orderStore, idempStore, cfg.DefaultSuccessURL, cfg.DefaultCancelURL)
	proc := settlement.NewProcessor(cfg.Gateway, orderStore, publisher, metrics)

	r.POST("/checkout/sessions", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateSessionRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		sessionID, err := svc.CreateSession(ctx, checkout.CreateSessionInput{
			PriceID:        req.PriceID,
			ProductName:    req.ProductName,
			SuccessURL:     req.SuccessURL,
			CancelURL:      req.CancelURL,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
		})
		if err != nil {
			// Shoppers get a generic retry prompt; details stay in the logs.
			switch {
			case errors.Is(err, checkout.ErrMissingPriceID):
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing_price_id"})
			case errors.Is(err, checkout.ErrGatewayUnavailable):
				c.JSON(http.StatusBadGateway, gin.H{"error": "checkout_unavailable"})
			case errors.Is(err, checkout.ErrRequestInProgress):
				c.JSON(http.StatusConflict, gin.H{"error": "request_in_progress"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout_failed"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
	})

	r.POST("/webhooks/stripe", func(c *gin.Context) {
		ctx := c.Request.Context()

		// Raw bytes only; nothing is decoded before signature verification.
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		_, err = proc.Process(ctx, payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidSignature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
				return
			}
			// Withholding the ack hands the event back to the gateway's
			// retry policy.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	})

	r.GET("/orders/:session_id", func(c *gin.Context) {
		ctx := c.Request.Context()

		order, err := orderStore.GetBySessionID(ctx, c.Param("session_id"))
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"order_id":       order.OrderID,
			"product_name":   order.ProductName,
			"total_cents":    order.TotalCents,
			"status":         order.Status,
			"customer_email": order.CustomerEmail,
		})
	})
}
