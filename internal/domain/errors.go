package domain

import (
	"errors"
	"fmt"
)

// ErrorCode — код ошибки Disqus API (https://disqus.com/api/docs/errors/).
type ErrorCode int

const (
	ErrCodeEndpointInvalid ErrorCode = iota + 1
	ErrCodeMissingArgs
	ErrCodeEndpointResourceInvalid
	ErrCodeAuthenticationRequired
	ErrCodeInvalidAPIKey
	ErrCodeInvalidAPIVersion
	ErrCodeInvalidVerb
	ErrCodeObjectNotFound
	ErrCodeInaccessibleWithKey
	ErrCodeOperationUnsupported
	ErrCodeInvalidKeyForDomain
	ErrCodeInsufficientAppPrivileges
	ErrCodeRateLimitResource
	ErrCodeRateLimitAccount
	ErrCodeInternalError
	ErrCodeRequestTimeout
	ErrCodeUserAccessDenied
	ErrCodeInvalidAuthSignature
	ErrCodeResubmitCaptcha
	ErrCodeMaintenanceSaved
	ErrCodeMaintenanceNotSaved
	ErrCodeResourcePermissionDenied
	ErrCodeAuthenticationVerificationRequired
	ErrCodeExceededCreateQuota
	ErrCodeThirdParty
)

var (
	// ErrVoteRejected возвращается, когда Disqus не засчитал голос (delta == 0).
	ErrVoteRejected = errors.New("голос не был засчитан")

	// ErrMalformedResponse сигнализирует о том, что тело ответа API не является JSON.
	ErrMalformedResponse = errors.New("некорректный ответ disqus api")
)

// APIError — типизированная ошибка из конверта ответа Disqus (code != 0).
type APIError struct {
	Code    ErrorCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("disqus api: код %d: %s", e.Code, e.Message)
}

// AuthenticationRequired сообщает, требует ли операция входа пользователя.
func (e *APIError) AuthenticationRequired() bool {
	return e.Code == ErrCodeAuthenticationRequired || e.Code == ErrCodeAuthenticationVerificationRequired
}

// AsAPIError извлекает *APIError из цепочки ошибок.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
