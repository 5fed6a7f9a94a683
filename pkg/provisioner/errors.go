package provisioner

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDescriptor is returned by Release and Remove for connection strings this provisioner never issued.
	ErrUnknownDescriptor = errors.New("connection string was not issued by this provisioner")
	// ErrFileSystem wraps all file system failures of the SQLite backend.
	ErrFileSystem = errors.New("file system error")
	// ErrInvalidFingerprint is returned for raw fingerprints a backend can't use as is.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

// Phase identifies the step of provisioning which failed.
type Phase string

const (
	PhaseFingerprint Phase = "fingerprint"
	PhaseBuild       Phase = "build"
	PhaseAcquire     Phase = "acquire"
	PhaseReadiness   Phase = "readiness"
	PhaseRelease     Phase = "release"
	PhaseRemove      Phase = "remove"
)

// Error is returned by all Provisioner operations. Tests can tell broken seed logic (PhaseBuild)
// from an unavailable pooling service (client errors in PhaseAcquire) via errors.As.
type Error struct {
	Phase   Phase
	Hash    string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	if len(e.Hash) == 0 {
		return fmt.Sprintf("%s: %s failed: %v", e.Backend, e.Phase, e.Err)
	}

	return fmt.Sprintf("%s: %s failed for template %q: %v", e.Backend, e.Phase, e.Hash, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PhaseOf returns the Phase err was raised in, or "" if err does not originate from a Provisioner.
func PhaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}

	return ""
}
