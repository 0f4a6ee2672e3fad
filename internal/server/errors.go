package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/rate"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
	"github.com/voxora/voxora/pkg/db/pagination"
)

// apiError is the wire shape for every non-2xx response.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

var (
	ErrUnauthorized    = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid credentials"}
	ErrNotFound        = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrTooManyRequests = &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
)

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "malformed request body"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError translates domain errors into HTTP responses. Unrecognized
// errors surface as a bare 500 with no internal detail.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, ledgerdomain.ErrLedgerNotFound),
		errors.Is(err, sessiondomain.ErrSessionNotFound):
		status, code, message = http.StatusNotFound, err.Error(), "resource not found"
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		status, code, message = http.StatusPaymentRequired, err.Error(), "insufficient token balance"
	case errors.Is(err, sessiondomain.ErrAdmissionDenied):
		status, code, message = http.StatusPaymentRequired, err.Error(), "balance too low to start session"
	case errors.Is(err, sessiondomain.ErrDuplicateSession):
		status, code, message = http.StatusConflict, err.Error(), "an active session already holds this token"
	case errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidUser),
		errors.Is(err, ledgerdomain.ErrInvalidCreditType),
		errors.Is(err, sessiondomain.ErrInvalidDuration),
		errors.Is(err, sessiondomain.ErrInvalidStatus),
		errors.Is(err, rate.ErrUnknownServiceType),
		errors.Is(err, pagination.ErrInvalidPageToken):
		status, code, message = http.StatusBadRequest, err.Error(), "invalid request parameter"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apiError{Status: status, Code: code, Message: message}})
}
