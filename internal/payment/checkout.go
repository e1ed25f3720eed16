package payment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
)

const (
	// MinorUnitsPerUnit: цена хранится в целых единицах, шлюз ждёт минимальные.
	MinorUnitsPerUnit  = 100
	MaxDescriptionRune = 500
)

// BuildCheckoutRequest собирает запрос в шлюз для покупки консультации клиентом.
// origin: публичный адрес сервиса, от него строятся callback-URL и картинка.
func BuildCheckoutRequest(
	c model.Consultation,
	clientID uuid.UUID,
	origin *url.URL,
	currency string,
) (CheckoutRequest, error) {
	if c.Price <= 0 {
		return CheckoutRequest{}, apperr.New(apperr.CodeValidation, "consultation price must be positive")
	}

	image, err := AbsoluteURL(origin, c.CoverImageURL)
	if err != nil {
		return CheckoutRequest{}, err
	}

	base := strings.TrimRight(origin.String(), "/")
	id := c.ID.String()

	return CheckoutRequest{
		Currency:           currency,
		AmountMinor:        c.Price * MinorUnitsPerUnit,
		Quantity:           1,
		ProductName:        c.Title,
		ProductDescription: Truncate(c.Description, MaxDescriptionRune),
		ProductImageURL:    image,
		// плейсхолдер нельзя экранировать, шлюз ищет его буквально
		SuccessURL: fmt.Sprintf("%s/payment-success?consultationId=%s&session_id=%s",
			base, url.QueryEscape(id), SessionIDPlaceholder),
		CancelURL: fmt.Sprintf("%s/consultation/%s", base, url.PathEscape(id)),
		Metadata: map[string]string{
			MetaConsultationID: id,
			MetaClientID:       clientID.String(),
		},
	}, nil
}

// AbsoluteURL оставляет абсолютные ссылки как есть, относительные резолвит от origin.
func AbsoluteURL(origin *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeValidation, "invalid image reference", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return origin.ResolveReference(u).String(), nil
}

// Truncate режет строку по рунам, не ломая UTF-8.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
