package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"

	"github.com/swiftcart/api/internal/services"
)

type stubRefundAPI struct {
	params *stripe.RefundParams
	refund *stripe.Refund
	err    error
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.refund, nil
}

func TestStripeRefundProcessorSubmitRefund(t *testing.T) {
	api := &stubRefundAPI{refund: &stripe.Refund{ID: "re_123"}}
	processor, err := NewStripeRefundProcessor(StripeRefundConfig{Refunds: api})
	if err != nil {
		t.Fatalf("NewStripeRefundProcessor: %v", err)
	}

	receipt, err := processor.SubmitRefund(context.Background(), services.RefundRequest{
		PaymentRef: "pi_987",
		Amount:     118.00,
		Reason:     "requested_by_customer",
	})
	if err != nil {
		t.Fatalf("SubmitRefund: %v", err)
	}
	if receipt.ProviderRef != "re_123" {
		t.Fatalf("expected provider ref re_123, got %q", receipt.ProviderRef)
	}
	if api.params == nil {
		t.Fatal("expected refund params to be sent")
	}
	if got := stripe.StringValue(api.params.PaymentIntent); got != "pi_987" {
		t.Fatalf("expected payment intent pi_987, got %q", got)
	}
	if got := stripe.Int64Value(api.params.Amount); got != 11800 {
		t.Fatalf("expected 11800 minor units, got %d", got)
	}
	if got := stripe.StringValue(api.params.Reason); got != string(stripe.RefundReasonRequestedByCustomer) {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestStripeRefundProcessorValidation(t *testing.T) {
	processor, err := NewStripeRefundProcessor(StripeRefundConfig{Refunds: &stubRefundAPI{}})
	if err != nil {
		t.Fatalf("NewStripeRefundProcessor: %v", err)
	}

	if _, err := processor.SubmitRefund(context.Background(), services.RefundRequest{Amount: 10}); err == nil {
		t.Fatal("expected error for missing payment reference")
	}
	if _, err := processor.SubmitRefund(context.Background(), services.RefundRequest{PaymentRef: "pi_1"}); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

func TestStripeRefundProcessorPropagatesProviderError(t *testing.T) {
	api := &stubRefundAPI{err: errors.New("card frozen")}
	processor, err := NewStripeRefundProcessor(StripeRefundConfig{Refunds: api})
	if err != nil {
		t.Fatalf("NewStripeRefundProcessor: %v", err)
	}

	if _, err := processor.SubmitRefund(context.Background(), services.RefundRequest{PaymentRef: "pi_1", Amount: 5}); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}
