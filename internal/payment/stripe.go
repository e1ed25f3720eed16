package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/config"
)

// StripeGateway: Stripe Checkout. Повторов на уровне SDK нет, создание сессии
// не идемпотентно.
type StripeGateway struct {
	sessions      *session.Client
	refunds       *refund.Client
	webhookSecret string
	timeout       time.Duration
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &StripeGateway{
		sessions:      &session.Client{B: backend, Key: cfg.SecretKey},
		refunds:       &refund.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := checkoutParams(req)
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, gatewayErr("create checkout session", err)
	}
	return CheckoutSession{ID: s.ID, RedirectURL: s.URL}, nil
}

func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(sessionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return SessionStatus{}, apperr.Wrap(apperr.CodeNotFound, "checkout session not found", err)
		}
		return SessionStatus{}, gatewayErr("get checkout session", err)
	}
	return sessionStatus(s), nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := refundParams(paymentIntentID, idempotencyKey)
	params.Context = ctx

	if _, err := g.refunds.New(params); err != nil {
		if alreadyRefunded(err) {
			return nil
		}
		return gatewayErr("refund", err)
	}
	return nil
}

func refundParams(paymentIntentID, idempotencyKey string) *stripe.RefundParams {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	return params
}

// alreadyRefunded: платёж уже возвращён, повторный запрос считаем успешным.
func alreadyRefunded(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.Code == stripe.ErrorCode("charge_already_refunded")
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, apperr.Wrap(apperr.CodeUnauthorized, "invalid webhook signature", err)
	}

	out := WebhookEvent{Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return WebhookEvent{}, apperr.Wrap(apperr.CodeValidation, "malformed checkout session payload", err)
	}
	out.SessionID = s.ID
	out.Metadata = s.Metadata
	return out, nil
}

func checkoutParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.ProductDescription != "" {
		product.Description = stripe.String(req.ProductDescription)
	}
	if req.ProductImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ProductImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					UnitAmount:  stripe.Int64(req.AmountMinor),
					ProductData: product,
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func sessionStatus(s *stripe.CheckoutSession) SessionStatus {
	st := SessionStatus{
		ID:          s.ID,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountMinor: s.AmountTotal,
		Currency:    string(s.Currency),
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		st.PaymentIntentID = s.PaymentIntent.ID
	}
	return st
}

func gatewayErr(op string, err error) error {
	return apperr.Wrap(apperr.CodeGateway, fmt.Sprintf("payment gateway: %s failed", op), err)
}
