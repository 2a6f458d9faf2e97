package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput              = "INITIATIVES_BAD_INPUT"
	ErrorUnauthorized          = "INITIATIVES_UNAUTHORIZED"
	ErrorForbidden             = "INITIATIVES_FORBIDDEN"
	ErrorInitiativeNotFound    = "INITIATIVE_NOT_FOUND"
	ErrorParticipationNotFound = "PARTICIPATION_NOT_FOUND"
	ErrorContentNotFound       = "CONTENT_NOT_FOUND"
	ErrorSubscriberNotFound    = "SUBSCRIBER_NOT_FOUND"
	ErrorAlreadyJoined         = "PARTICIPATION_ALREADY_JOINED"
	ErrorFull                  = "PARTICIPATION_FULL"
	ErrorRegistrationClosed    = "PARTICIPATION_REGISTRATION_CLOSED"
	ErrorInvalidTransition     = "PARTICIPATION_INVALID_TRANSITION"
	ErrorProviderTransient     = "PROVIDER_TRANSIENT"
	ErrorProviderRateLimited   = "PROVIDER_RATE_LIMITED"
	ErrorProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	ErrorConfigMissing         = "CONFIG_MISSING"
	ErrorInternal              = "INITIATIVES_INTERNAL_ERROR"
	ErrorSignatureInvalid      = "WEBHOOK_SIGNATURE_INVALID"
	ErrorMalformedPayload      = "WEBHOOK_MALFORMED_PAYLOAD"
)

// ErrProviderNotConfigured is returned by delivery adapters when no API key is
// set. Callers skip the feature instead of failing.
var ErrProviderNotConfigured = NewError(
	"delivery provider is not configured",
	goerrors.CategoryOperation,
	ErrorProviderNotConfigured,
)

// IsNotConfigured reports whether err signals a disabled integration rather
// than a failure.
func IsNotConfigured(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderNotConfigured) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ErrorProviderNotConfigured
	}
	return false
}

func NewError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func WrapError(source error, category goerrors.Category, textCode string, message string) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode)
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func errUnauthorized() error {
	return NewError("authentication is required", goerrors.CategoryAuth, ErrorUnauthorized)
}

func errForbidden(initiativeID string) error {
	return NewError("only the initiative manager can perform this action", goerrors.CategoryAuthz, ErrorForbidden).
		WithMetadata(map[string]any{"initiative_id": initiativeID})
}

func errInitiativeNotFound(initiativeID string) error {
	return NewError("initiative not found", goerrors.CategoryNotFound, ErrorInitiativeNotFound).
		WithMetadata(map[string]any{"initiative_id": initiativeID})
}

func errParticipationNotFound(participationID string) error {
	return NewError("participation not found", goerrors.CategoryNotFound, ErrorParticipationNotFound).
		WithMetadata(map[string]any{"participation_id": participationID})
}

func errAlreadyJoined(initiativeID string) error {
	return NewError("already joined this initiative", goerrors.CategoryConflict, ErrorAlreadyJoined).
		WithMetadata(map[string]any{"initiative_id": initiativeID})
}

func errFull(initiativeID string) error {
	return NewError("initiative is full", goerrors.CategoryConflict, ErrorFull).
		WithMetadata(map[string]any{"initiative_id": initiativeID})
}

func errRegistrationClosed(initiativeID string) error {
	return NewError("registration deadline has passed", goerrors.CategoryConflict, ErrorRegistrationClosed).
		WithMetadata(map[string]any{"initiative_id": initiativeID})
}

func errInvalidTransition(p Participation, next ParticipationStatus) error {
	return NewError("participation cannot move to "+string(next), goerrors.CategoryConflict, ErrorInvalidTransition).
		WithMetadata(map[string]any{
			"participation_id": p.ID,
			"from":             string(p.Status),
			"to":               string(next),
		})
}

func errBadInput(field string, message string) error {
	return InvalidField(field, message)
}

// InvalidField is the BAD_INPUT validation envelope for one field.
func InvalidField(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// MissingDependency reports a handler wired without its collaborator.
func MissingDependency(component string, dependency string) *goerrors.Error {
	return NewError(component+": "+dependency+" is required", goerrors.CategoryInternal, ErrorInternal).
		WithMetadata(map[string]any{"dependency": dependency})
}

// MapError normalizes any error into the go-errors envelope used across the
// module.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return WrapError(err, goerrors.CategoryNotFound, ErrorParticipationNotFound, "record not found")
	case errors.Is(err, ErrParticipationExists):
		return WrapError(err, goerrors.CategoryConflict, ErrorAlreadyJoined, "already joined this initiative")
	case errors.Is(err, ErrCapacityReached):
		return WrapError(err, goerrors.CategoryConflict, ErrorFull, "initiative is full")
	case errors.Is(err, ErrInvalidParticipationStatusTransition), errors.Is(err, ErrStatusConflict):
		return WrapError(err, goerrors.CategoryConflict, ErrorInvalidTransition, "invalid participation transition")
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not configured"):
		return NewError(err.Error(), goerrors.CategoryOperation, ErrorProviderNotConfigured)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return NewError(err.Error(), goerrors.CategoryRateLimit, ErrorProviderRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return NewError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// TextCode returns the envelope text code of err, or "" when err is nil.
func TextCode(err error) string {
	mapped := MapError(err)
	if mapped == nil {
		return ""
	}
	return mapped.TextCode
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if !moduleTextCodes[strings.TrimSpace(err.TextCode)] {
		// Codes minted by go-errors mappers (INTERNAL_ERROR, UNAUTHORIZED)
		// have no translation; fold them into ours.
		if code := defaultTextCode(err.Category); code != ErrorInternal || err.Category == goerrors.CategoryInternal || err.TextCode == "" {
			err.TextCode = code
		}
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

var moduleTextCodes = map[string]bool{
	ErrorBadInput:              true,
	ErrorUnauthorized:          true,
	ErrorForbidden:             true,
	ErrorInitiativeNotFound:    true,
	ErrorParticipationNotFound: true,
	ErrorContentNotFound:       true,
	ErrorSubscriberNotFound:    true,
	ErrorAlreadyJoined:         true,
	ErrorFull:                  true,
	ErrorRegistrationClosed:    true,
	ErrorInvalidTransition:     true,
	ErrorProviderTransient:     true,
	ErrorProviderRateLimited:   true,
	ErrorProviderNotConfigured: true,
	ErrorConfigMissing:         true,
	ErrorInternal:              true,
	ErrorSignatureInvalid:      true,
	ErrorMalformedPayload:      true,
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorProviderRateLimited
	case goerrors.CategoryExternal:
		return ErrorProviderTransient
	default:
		return ErrorInternal
	}
}

// HTTPStatus maps an error category to the status code surfaced by handlers.
func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
