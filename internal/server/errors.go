package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quorumhq/quorum/internal/authorization"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	recurringdomain "github.com/quorumhq/quorum/internal/recurring/domain"
	registrydomain "github.com/quorumhq/quorum/internal/registry/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ledgerdomain.ErrDuplicateAllocation):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_allocation",
			Message: "payment already allocated to this charge",
		}
	case errors.Is(err, ledgerdomain.ErrCommunityMismatch):
		return http.StatusConflict, errorPayload{
			Type:    "community_mismatch",
			Message: "entities belong to different communities",
		}
	case errors.Is(err, ledgerdomain.ErrConcurrencyConflict):
		return http.StatusConflict, errorPayload{
			Type:    "concurrency_conflict",
			Message: "a concurrent operation touched the same entities, retry",
		}
	case errors.Is(err, ledgerdomain.ErrBalanceViolation):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "balance_violation",
			Message: "allocation would drive a balance negative",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ledgerdomain.ErrNotFound) ||
		errors.Is(err, registrydomain.ErrNotFound) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidCommunity),
		errors.Is(err, ledgerdomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrInvalidName),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidTarget),
		errors.Is(err, ledgerdomain.ErrInvalidDueDate),
		errors.Is(err, recurringdomain.ErrInvalidFrequency),
		errors.Is(err, recurringdomain.ErrInvalidSkip),
		errors.Is(err, recurringdomain.ErrInvalidTimeToPay),
		errors.Is(err, recurringdomain.ErrInvalidNextCharge),
		errors.Is(err, registrydomain.ErrInvalidCommunity),
		errors.Is(err, registrydomain.ErrInvalidName),
		errors.Is(err, registrydomain.ErrInvalidUnitNo):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_community":
		return "community_id"
	case "invalid_id":
		return "id"
	case "invalid_name":
		return "name"
	case "invalid_amount":
		return "amount"
	case "invalid_target":
		return "target"
	case "invalid_due_date":
		return "due_date"
	case "invalid_frequency":
		return "frequency"
	case "invalid_frequency_skip":
		return "frequency_skip"
	case "invalid_time_to_pay":
		return "time_to_pay_days"
	case "invalid_next_charge_date":
		return "next_charge_date"
	case "invalid_unit_no":
		return "unit_no"
	default:
		return "request"
	}
}
