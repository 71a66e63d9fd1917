package lark

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNoCredentials = errors.New("lark: app_id and app_secret are required")
	ErrNoBaseURL     = errors.New("lark: base url is required")
)

const (
	codeOK = 0

	// Platform error codes that get distinct handling.
	CodeTokenRateLimited  = 99991400 // tenant token endpoint frequency limit
	CodeDriveRateLimited  = 1061045  // drive api frequency limit
	CodeDriveNoPermission = 1061004  // no permission on the target node
)

// APIError is a non-zero code in the platform's {code, msg, data} envelope,
// or a non-2xx response that carried no envelope.
type APIError struct {
	Op     string
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error %d: %s (http %d)", e.Op, e.Code, e.Msg, e.Status)
}

// IsThrottled reports whether err is a remote-side rate rejection.
func IsThrottled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests ||
		apiErr.Code == CodeTokenRateLimited ||
		apiErr.Code == CodeDriveRateLimited
}

// IsPermissionDenied reports whether err is a remote-side access denial.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusForbidden ||
		apiErr.Code == CodeDriveNoPermission
}

// handleAPIError is a helper that handles the common error pattern: transport
// errors first, then envelope codes, then bare HTTP error states.
func handleAPIError(resp *req.Response, requestErr error, env *baseResponse, op string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", op, requestErr)
	}

	if env != nil && env.Code != codeOK {
		return &APIError{
			Op:     op,
			Status: resp.StatusCode,
			Code:   env.Code,
			Msg:    env.Msg,
		}
	}

	// got a response, but no parseable envelope
	if resp.IsErrorState() {
		return &APIError{
			Op:     op,
			Status: resp.StatusCode,
			Msg:    resp.Status,
		}
	}

	return nil
}
