// Package payment описывает платёжный шлюз и сборку checkout-запроса.
package payment

import "context"

// Ключи метаданных сессии.
const (
	MetaConsultationID = "consultationId"
	MetaClientID       = "clientId"
)

// SessionIDPlaceholder подставляется шлюзом в success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CheckoutRequest: всё, что уходит в шлюз при создании сессии.
type CheckoutRequest struct {
	Currency           string
	AmountMinor        int64
	Quantity           int64
	ProductName        string
	ProductDescription string
	ProductImageURL    string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

// CheckoutSession: ответ шлюза, куда отправить клиента.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// SessionStatus: состояние сессии по данным шлюза.
type SessionStatus struct {
	ID              string
	Paid            bool
	AmountMinor     int64
	Currency        string
	PaymentIntentID string
	Metadata        map[string]string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	// GetSession нужен для проверки оплаты до создания бронирования.
	GetSession(ctx context.Context, sessionID string) (SessionStatus, error)
	// Refund с тем же idempotencyKey возвращает платёж не больше одного раза.
	Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error
}

// WebhookEvent: проверенное уведомление шлюза.
type WebhookEvent struct {
	Type      string
	SessionID string
	Metadata  map[string]string
}

// EventCheckoutCompleted: единственный тип уведомления, который мы обрабатываем.
const EventCheckoutCompleted = "checkout.session.completed"

type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
