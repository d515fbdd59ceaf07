package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/swiftcart/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeRefundConfig configures the StripeRefundProcessor.
type StripeRefundConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	// Refunds overrides the Stripe client, for tests.
	Refunds stripeRefundAPI
}

// StripeRefundProcessor submits order refunds through the Stripe Refunds API.
type StripeRefundProcessor struct {
	refunds stripeRefundAPI
	account string
	clock   func() time.Time
	logger  StripeLogger
}

var _ services.RefundProcessor = (*StripeRefundProcessor)(nil)

// NewStripeRefundProcessor constructs a Stripe-backed refund processor.
func NewStripeRefundProcessor(cfg StripeRefundConfig) (*StripeRefundProcessor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Refunds == nil {
		return nil, errors.New("stripe: api key is required")
	}

	refunds := cfg.Refunds
	if refunds == nil {
		sc := client.New(apiKey, cfg.Backends)
		refunds = sc.Refunds
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeRefundProcessor{
		refunds: refunds,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// SubmitRefund creates a Stripe refund against the order's payment intent.
// The payment reference doubles as the idempotency key so a retried
// transition cannot refund twice.
func (p *StripeRefundProcessor) SubmitRefund(ctx context.Context, req services.RefundRequest) (services.RefundReceipt, error) {
	if p == nil || p.refunds == nil {
		return services.RefundReceipt{}, errors.New("stripe: refund processor not initialised")
	}
	intentID := strings.TrimSpace(req.PaymentRef)
	if intentID == "" {
		return services.RefundReceipt{}, errors.New("stripe: payment reference is required")
	}
	if req.Amount <= 0 {
		return services.RefundReceipt{}, errors.New("stripe: refund amount must be positive")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountToMinorUnits(req.Amount)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	refund, err := p.refunds.New(params)
	if err != nil {
		return services.RefundReceipt{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.refund.created", map[string]any{
		"paymentIntent": intentID,
		"refund":        refund.ID,
	})
	return services.RefundReceipt{ProviderRef: refund.ID}, nil
}

func amountToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
