package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripe event types this service reacts to. Everything else maps to the
// unknown variant.
const (
	stripeEventSessionCompleted = "checkout.session.completed"
	stripeEventPaymentFailed    = "payment_intent.payment_failed"
)

// StripeClient implements Client on top of the Stripe SDK (hosted Checkout
// Sessions + signed webhooks).
type StripeClient struct {
	api           *client.API
	webhookSecret string
}

// NewStripeClient builds a StripeClient from the account's secret key and
// webhook signing secret.
func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

// CreateSession opens a one-item, quantity-1 hosted checkout session in
// payment mode. Stripe computes the total from the price id.
func (c *StripeClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("product_name", req.ProductName)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Session{
		ID:         sess.ID,
		TotalCents: sess.AmountTotal,
	}, nil
}

// VerifySignature checks the Stripe-Signature header (HMAC-SHA256 over the
// raw body) before any decode, then maps the event onto the closed variant
// set.
func (c *StripeClient) VerifySignature(payload []byte, sigHeader string) (Event, error) {
	// Webhook endpoints deliver with the account's pinned API version, which
	// rarely matches the SDK's; the signature check is what matters here.
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	rawType := string(ev.Type)
	switch rawType {
	case stripeEventSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", rawType, err)
		}
		out := Event{
			Type:      EventSessionCompleted,
			RawType:   rawType,
			SessionID: sess.ID,
		}
		if sess.CustomerDetails != nil {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
		return out, nil

	case stripeEventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &intent); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", rawType, err)
		}
		// Payment intents do not carry the session id directly; the
		// checkout flow stashes it in intent metadata.
		return Event{
			Type:      EventPaymentFailed,
			RawType:   rawType,
			SessionID: intent.Metadata["session_id"],
		}, nil

	default:
		return Event{Type: EventUnknown, RawType: rawType}, nil
	}
}
