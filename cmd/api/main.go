package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	awsx "github.com/julddmedia/storefront-checkout/internal/aws"
	"github.com/julddmedia/storefront-checkout/internal/gateway"
	"github.com/julddmedia/storefront-checkout/internal/handlers"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterCheckoutRoutes(r, cfg)

	return r
}

func main() {
	clients, err := awsx.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	siteOrigin := os.Getenv("SITE_ORIGIN")
	successURL := os.Getenv("CHECKOUT_SUCCESS_URL")
	if successURL == "" {
		// {CHECKOUT_SESSION_ID} is substituted by the gateway on redirect.
		successURL = siteOrigin + "/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := os.Getenv("CHECKOUT_CANCEL_URL")
	if cancelURL == "" {
		cancelURL = siteOrigin + "/shop"
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:   clients.DynamoDB,
		SQSClient:        clients.SQS,
		CloudWatchClient: clients.CloudWatch,
		Gateway: gateway.NewStripeClient(
			os.Getenv("STRIPE_SECRET_KEY"),
			os.Getenv("STRIPE_WEBHOOK_SECRET"),
		),
		OrdersTable:       os.Getenv("ORDERS_TABLE"),
		IdempotencyTable:  os.Getenv("IDEMPOTENCY_TABLE"),
		QueueURL:          os.Getenv("SETTLEMENT_QUEUE_URL"),
		TTLWindow:         48 * time.Hour,
		MetricsNamespace:  "StorefrontCheckout",
		DefaultSuccessURL: successURL,
		DefaultCancelURL:  cancelURL,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
