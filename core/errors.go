package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	FormsErrorBadInput             = "FORMS_BAD_INPUT"
	FormsErrorNotFound             = "FORMS_NOT_FOUND"
	FormsErrorDisabled             = "FORMS_DISABLED"
	FormsErrorOriginForbidden      = "FORMS_ORIGIN_FORBIDDEN"
	FormsErrorRateLimited          = "FORMS_RATE_LIMITED"
	FormsErrorQueueClosed          = "FORMS_QUEUE_CLOSED"
	FormsErrorConnectorUnsupported = "FORMS_CONNECTOR_UNSUPPORTED"
	FormsErrorInternal             = "FORMS_INTERNAL_ERROR"
)

var (
	ErrQueueClosed         = errors.New("core: dispatch queue is closed")
	ErrFormNotFound        = errors.New("core: form configuration not found")
	ErrFormDisabled        = errors.New("core: form is disabled")
	ErrOriginForbidden     = errors.New("core: origin domain is not allowed")
	ErrRateLimited         = errors.New("core: form rate limit exceeded")
	ErrUnknownConnector    = errors.New("core: connector type is not registered")
	ErrSubmissionNotFound  = errors.New("core: submission not found")
	ErrInvalidSettings     = errors.New("core: connector settings are invalid")
	ErrDeliveryTimeout     = errors.New("core: connector delivery timed out")
	ErrResolverUnsupported = errors.New("core: resolver provider is not supported")
)

func formsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureFormsErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrFormNotFound), errors.Is(err, ErrSubmissionNotFound):
		return newFormsError(err.Error(), goerrors.CategoryNotFound, FormsErrorNotFound)
	case errors.Is(err, ErrFormDisabled):
		return newFormsError(err.Error(), goerrors.CategoryAuthz, FormsErrorDisabled)
	case errors.Is(err, ErrOriginForbidden):
		return newFormsError(err.Error(), goerrors.CategoryAuthz, FormsErrorOriginForbidden)
	case errors.Is(err, ErrRateLimited):
		return newFormsError(err.Error(), goerrors.CategoryRateLimit, FormsErrorRateLimited)
	case errors.Is(err, ErrQueueClosed):
		return newFormsError(err.Error(), goerrors.CategoryExternal, FormsErrorQueueClosed).
			WithCode(http.StatusServiceUnavailable)
	case errors.Is(err, ErrUnknownConnector), errors.Is(err, ErrInvalidSettings):
		return newFormsError(err.Error(), goerrors.CategoryBadInput, FormsErrorConnectorUnsupported)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newFormsError(err.Error(), goerrors.CategoryNotFound, FormsErrorNotFound)
	case strings.Contains(msg, "rate limit"):
		return newFormsError(err.Error(), goerrors.CategoryRateLimit, FormsErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "duplicate"):
		return newFormsError(err.Error(), goerrors.CategoryBadInput, FormsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureFormsErrorEnvelope(mapped)
}

func newFormsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureFormsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureFormsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = formsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultFormsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultFormsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return FormsErrorBadInput
	case goerrors.CategoryNotFound:
		return FormsErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return FormsErrorOriginForbidden
	case goerrors.CategoryRateLimit:
		return FormsErrorRateLimited
	case goerrors.CategoryExternal:
		return FormsErrorQueueClosed
	default:
		return FormsErrorInternal
	}
}

func formsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
