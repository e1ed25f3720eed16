package payment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestCheckoutParams(t *testing.T) {
	params := checkoutParams(CheckoutRequest{
		Currency:           "egp",
		AmountMinor:        10000,
		Quantity:           1,
		ProductName:        "Visa advice",
		ProductDescription: "desc",
		ProductImageURL:    "https://cdn.example.com/a.png",
		SuccessURL:         "https://x/payment-success",
		CancelURL:          "https://x/consultation/1",
		Metadata:           map[string]string{MetaConsultationID: "c1", MetaClientID: "u1"},
	})

	if stripe.StringValue(params.Mode) != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("mode must be payment")
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("want one line item")
	}
	li := params.LineItems[0]
	if stripe.Int64Value(li.Quantity) != 1 || stripe.Int64Value(li.PriceData.UnitAmount) != 10000 {
		t.Fatalf("unexpected quantity/amount")
	}
	if stripe.StringValue(li.PriceData.Currency) != "egp" {
		t.Fatalf("unexpected currency")
	}
	if len(li.PriceData.ProductData.Images) != 1 {
		t.Fatalf("image must be forwarded")
	}
	if params.Metadata[MetaConsultationID] != "c1" || params.Metadata[MetaClientID] != "u1" {
		t.Fatalf("unexpected metadata %v", params.Metadata)
	}
}

func TestCheckoutParams_OmitsEmptyOptionalFields(t *testing.T) {
	params := checkoutParams(CheckoutRequest{Currency: "egp", AmountMinor: 100, Quantity: 1, ProductName: "n"})
	pd := params.LineItems[0].PriceData.ProductData
	if pd.Description != nil || pd.Images != nil {
		t.Fatalf("empty description and image must be omitted")
	}
}

func TestSessionStatus(t *testing.T) {
	st := sessionStatus(&stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   10000,
		Currency:      stripe.Currency("egp"),
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		Metadata:      map[string]string{MetaClientID: "u1"},
	})
	if !st.Paid || st.PaymentIntentID != "pi_1" || st.AmountMinor != 10000 || st.Currency != "egp" {
		t.Fatalf("unexpected status %+v", st)
	}

	unpaid := sessionStatus(&stripe.CheckoutSession{ID: "cs_2", PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid})
	if unpaid.Paid {
		t.Fatalf("unpaid session reported as paid")
	}
}

func TestRefundParams(t *testing.T) {
	params := refundParams("pi_1", "refund:b1")
	if stripe.StringValue(params.PaymentIntent) != "pi_1" {
		t.Fatalf("unexpected payment intent")
	}
	if stripe.StringValue(params.IdempotencyKey) != "refund:b1" {
		t.Fatalf("idempotency key must be forwarded, got %q", stripe.StringValue(params.IdempotencyKey))
	}

	if refundParams("pi_1", "").IdempotencyKey != nil {
		t.Fatalf("empty key must be omitted")
	}
}

func TestAlreadyRefunded(t *testing.T) {
	done := &stripe.Error{Code: stripe.ErrorCode("charge_already_refunded")}
	if !alreadyRefunded(done) || !alreadyRefunded(fmt.Errorf("refund: %w", done)) {
		t.Fatalf("charge_already_refunded must count as refunded")
	}
	if alreadyRefunded(&stripe.Error{Code: stripe.ErrorCode("card_declined")}) {
		t.Fatalf("other stripe errors are failures")
	}
	if alreadyRefunded(errors.New("network down")) {
		t.Fatalf("plain errors are failures")
	}
}
