package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealshark/internal/actorcontext"
	attributiondomain "github.com/smallbiznis/dealshark/internal/attribution/domain"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"github.com/smallbiznis/dealshark/internal/authorization"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
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
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, auditdomain.ErrInvalidActor),
		errors.Is(err, actorcontext.ErrInvalidActorType):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, subscriptiondomain.ErrConflict),
		errors.Is(err, attributiondomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, attributiondomain.ErrSubscriptionInactive):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "subscription_inactive",
			Message: "subscription is not active",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger; it never sees raw error text
// for internal failures.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	switch payload.Type {
	case "validation_error":
		if len(payload.Errors) > 0 {
			return payload.Type, payload.Errors[0].Code
		}
		return payload.Type, "invalid_request"
	case "internal_error":
		return payload.Type, "internal_error"
	default:
		return payload.Type, payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isDealValidationError(err),
		isSubscriptionValidationError(err),
		isAttributionValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isDealValidationError(err error) bool {
	switch {
	case errors.Is(err, dealdomain.ErrInvalidBusiness),
		errors.Is(err, dealdomain.ErrInvalidName),
		errors.Is(err, dealdomain.ErrInvalidDescription),
		errors.Is(err, dealdomain.ErrInvalidRewardType),
		errors.Is(err, dealdomain.ErrInvalidIncentive),
		errors.Is(err, dealdomain.ErrInvalidNoRewardReason),
		errors.Is(err, dealdomain.ErrInvalidID),
		errors.Is(err, dealdomain.ErrInvalidPageToken),
		errors.Is(err, dealdomain.ErrDealInactive):
		return true
	default:
		return false
	}
}

func isSubscriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrInvalidDeal),
		errors.Is(err, subscriptiondomain.ErrInvalidReferrer),
		errors.Is(err, subscriptiondomain.ErrInvalidBusiness):
		return true
	default:
		return false
	}
}

func isAttributionValidationError(err error) bool {
	switch {
	case errors.Is(err, attributiondomain.ErrInvalidReferralCode),
		errors.Is(err, attributiondomain.ErrInvalidPurchaseAmount),
		errors.Is(err, attributiondomain.ErrInvalidOrderReference),
		errors.Is(err, attributiondomain.ErrInvalidOccurredAt),
		errors.Is(err, attributiondomain.ErrInvalidReferrer),
		errors.Is(err, attributiondomain.ErrInvalidBusiness),
		errors.Is(err, attributiondomain.ErrInvalidDays):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidPageToken) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, dealdomain.ErrForbidden),
		errors.Is(err, subscriptiondomain.ErrForbidden),
		errors.Is(err, attributiondomain.ErrForbidden):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, dealdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, attributiondomain.ErrNotFound),
		errors.Is(err, referrallinkdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == dealdomain.ErrDealInactive.Error() {
		return "deal_id"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "deal_inactive":
		return "deal is no longer active"
	default:
		return "invalid value"
	}
}
