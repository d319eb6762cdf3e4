package spawncap

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrProbeFailed means a capability could not be determined. Never fatal: the
	// capability defaults to StateUnsupported.
	ErrProbeFailed = errors.New("spawncap: capability probe failed")

	// ErrRegistrationFailed means a target could not be patched. Isolated to that target.
	ErrRegistrationFailed = errors.New("spawncap: target registration failed")

	// ErrCreationAborted means the host's generator returned an error mid-event. Agents
	// created before the error are left to the host.
	ErrCreationAborted = errors.New("spawncap: agent creation aborted")

	// ErrPatternNotFound means a rewrite was requested on a body that does not contain
	// the pattern.
	ErrPatternNotFound = errors.New("spawncap: instruction pattern not found")

	// ErrInvalidRequest means a SpawnRequest failed validation.
	ErrInvalidRequest = errors.New("spawncap: invalid spawn request")
)

// RegistrationError records one failed patch operation.
type RegistrationError struct {
	Target    TargetDescriptor
	Operation string
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("spawncap: %s on %s failed: %v", e.Operation, e.Target.Key(), e.Err)
}

func (e *RegistrationError) Unwrap() []error {
	return []error{ErrRegistrationFailed, e.Err}
}

// ChannelError is returned when an auxiliary enhancement channel fails. It aborts the
// rest of the compression event; agents already created and enhanced stay as they are.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("spawncap: enhancement channel %q failed: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
