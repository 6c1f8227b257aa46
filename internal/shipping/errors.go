package shipping

import (
	"fmt"
	"time"

	"github.com/noah-isme/backend-printshop/internal/common"
)

// ValidationError rejects malformed items, addresses or options. No partner
// call is made when it is returned.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "shipping: " + e.Message
	}
	return fmt.Sprintf("shipping: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind implements common.Kinded.
func (e *ValidationError) ErrorKind() common.Kind { return common.KindValidation }

// ServiceError is returned once every requested method exhausted its retries.
type ServiceError struct {
	Attempts int
	Methods  []string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("shipping: quote failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrorKind implements common.Kinded.
func (e *ServiceError) ErrorKind() common.Kind { return common.KindProviderFailure }

// TimeoutError is returned when a single partner call outlives the timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("shipping: partner quote timed out after %s", e.Timeout)
}

// ErrorKind implements common.Kinded.
func (e *TimeoutError) ErrorKind() common.Kind { return common.KindProviderFailure }
