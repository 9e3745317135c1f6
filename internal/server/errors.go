package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/source"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	webhookdomain "github.com/smallbiznis/storesync/internal/webhook/domain"
	"github.com/smallbiznis/storesync/pkg/db"
	"github.com/smallbiznis/storesync/pkg/db/pagination"
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
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
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
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "invalid signature",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, tenantdomain.ErrMissingCredential),
		errors.Is(err, tenantdomain.ErrInvalidCredential):
		return http.StatusPreconditionFailed, errorPayload{
			Type:    "precondition_failed",
			Message: "tenant has no usable source credential",
		}
	case errors.Is(err, ingestiondomain.ErrSyncInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "sync already in progress",
		}
	case errors.Is(err, ingestiondomain.ErrTriggerRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many sync triggers",
		}
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "payload too large",
		}
	case errors.Is(err, ErrServiceUnavailable),
		db.IsConnectionErr(err):
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

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ingestiondomain.ErrInvalidEntityType),
		errors.Is(err, ingestiondomain.ErrInvalidTenantID),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, webhookdomain.ErrUnsupportedTopic),
		errors.Is(err, webhookdomain.ErrMissingEventID),
		errors.Is(err, source.ErrInvalidShopDomain),
		errors.Is(err, tenantdomain.ErrInvalidStatus),
		errors.Is(err, source.ErrInvalidRecord),
		errors.Is(err, source.ErrInvalidDecimal):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound),
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
	case errors.Is(err, ingestiondomain.ErrInvalidEntityType):
		return ingestiondomain.ErrInvalidEntityType.Error()
	case errors.Is(err, ingestiondomain.ErrInvalidTenantID):
		return ingestiondomain.ErrInvalidTenantID.Error()
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return pagination.ErrInvalidPageToken.Error()
	case errors.Is(err, webhookdomain.ErrUnsupportedTopic):
		return webhookdomain.ErrUnsupportedTopic.Error()
	case errors.Is(err, webhookdomain.ErrMissingEventID):
		return webhookdomain.ErrMissingEventID.Error()
	case errors.Is(err, source.ErrInvalidShopDomain):
		return source.ErrInvalidShopDomain.Error()
	case errors.Is(err, tenantdomain.ErrInvalidStatus):
		return tenantdomain.ErrInvalidStatus.Error()
	case errors.Is(err, source.ErrInvalidDecimal):
		return source.ErrInvalidDecimal.Error()
	case errors.Is(err, source.ErrInvalidRecord):
		return source.ErrInvalidRecord.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "unsupported_topic":
		return "topic"
	case "missing_event_id":
		return "event_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unsupported_topic":
		return "unsupported webhook topic"
	case "missing_event_id":
		return "webhook event id is missing"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type and
// code for the last handler error.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server", code
	case status == http.StatusTooManyRequests, status == http.StatusConflict:
		return "throttled", code
	default:
		return "client", code
	}
}
