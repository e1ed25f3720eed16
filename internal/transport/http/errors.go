package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/consultation-platform/internal/apperr"
)

type errorBody struct {
	Code     apperr.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// abortWithError отдаёт ошибку в формате {code, message, metadata}.
// Причина наружу не уходит, только в лог.
func abortWithError(c *gin.Context, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Wrap(apperr.CodeInternal, "internal error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Code.HTTPStatus(), errorBody{
		Code:     e.Code,
		Message:  e.Message,
		Metadata: e.Metadata,
	})
}

func badRequest(c *gin.Context, field string, err error) {
	abortWithError(c, apperr.Wrap(apperr.CodeValidation, "invalid "+field, err).WithMetadata("field", field))
}

var errMissingField = errors.New("field is required")
