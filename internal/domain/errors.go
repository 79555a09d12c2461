package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the console.

// ErrUnauthenticated is returned locally when a remote call is attempted without
// a valid credential. No request is sent.
var ErrUnauthenticated = errors.New("Não autenticado")

// ErrRemote is a non-2xx response from the remote API.
type ErrRemote struct {
	Status  int
	Message string
}

func (e *ErrRemote) Error() string {
	return e.Message
}

// ErrNotYetSatisfied means the server reported an onboarding precondition as not met.
// It is a retryable warning, not a failure.
type ErrNotYetSatisfied struct {
	Message string
}

func (e *ErrNotYetSatisfied) Error() string {
	return e.Message
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrBusy means the same mutation is already in flight.
type ErrBusy struct {
	Operation string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("operation already in progress: %s", e.Operation)
}

// ErrForbidden indicates the action is not allowed in this build or state.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrTrainingIncomplete blocks the contract step while unlocked modules are pending.
type ErrTrainingIncomplete struct {
	Pending []string
}

func (e *ErrTrainingIncomplete) Error() string {
	if len(e.Pending) == 0 {
		return "Conclua os treinamentos antes de assinar o contrato"
	}
	return fmt.Sprintf("Conclua os treinamentos antes de assinar o contrato: %s", strings.Join(e.Pending, ", "))
}

// ErrInvalidTransition is returned when an onboarding action does not apply to the current stage.
type ErrInvalidTransition struct {
	Stage  int
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("%s is not available at onboarding stage %d", e.Action, e.Stage)
}

// IsWarning reports whether err is a retryable warning rather than an error.
func IsWarning(err error) bool {
	var nys *ErrNotYetSatisfied
	return errors.As(err, &nys)
}

// UserMessage returns the text a view should show inline for err.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var remote *ErrRemote
	if errors.As(err, &remote) && remote.Message != "" {
		return remote.Message
	}
	var nys *ErrNotYetSatisfied
	if errors.As(err, &nys) {
		return nys.Message
	}
	var validation *ErrValidation
	if errors.As(err, &validation) {
		return validation.Message
	}
	if errors.Is(err, ErrUnauthenticated) {
		return ErrUnauthenticated.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
