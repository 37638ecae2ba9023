package compliance

import (
	"errors"
	"fmt"
)

var (
	ErrImageKeyRequired      = errors.New("image key is required")
	ErrInvalidBudget         = errors.New("correlation budget must be positive")
	ErrInvalidPollInterval   = errors.New("poll interval must be positive")
	ErrBudgetTooLarge        = errors.New("correlation budget exceeds the configured maximum")
	ErrEmptyUpload           = errors.New("upload body is empty")
	ErrUnsupportedImageType  = errors.New("unsupported image type")
	ErrEmployeeIDRequired    = errors.New("employee id is required")
	ErrEmployeeNameRequired  = errors.New("employee name is required")
	ErrPhotoRequired         = errors.New("employee photo is required")
	ErrUnknownDepartment     = errors.New("unknown department")
	ErrInvalidViolationCount = errors.New("violation count must not be negative")
	ErrBlobNotFound          = errors.New("blob not found")

	// ErrInfrastructure marks store or transport failures. The caller should
	// offer a retry; it is never returned for the timed-out case.
	ErrInfrastructure = errors.New("infrastructure error")
)

// InfrastructureError reports which external store failed and during which operation.
type InfrastructureError struct {
	Store string
	Op    string
	Err   error
}

func (e *InfrastructureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Store, e.Op, ErrInfrastructure)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Store, e.Op, ErrInfrastructure, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

// NewInfrastructureError wraps err unless it is nil.
func NewInfrastructureError(store string, op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Store: store, Op: op, Err: err}
}
