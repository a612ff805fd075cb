package errors

import (
	stderrors "errors"
	"fmt"
)

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists (use --force to overwrite)")

	// Source configuration errors.
	ErrSourcesInvalid          = fmt.Errorf("persisted sources are invalid")
	ErrInvalidSourceType       = fmt.Errorf("invalid source type")
	ErrSourceNameAlreadyExists = fmt.Errorf("source name already exists")
	ErrSourceArgAlreadyExists  = fmt.Errorf("a source with the same type and argument already exists")
	ErrInvalidArgument         = fmt.Errorf("invalid argument")
	ErrSourceNotFound          = fmt.Errorf("source not found")
	ErrSourceNotRemote         = fmt.Errorf("source argument must be a remote URL")
	ErrSourceNotSecure         = fmt.Errorf("source argument must use https")
	ErrSourceDataMissing       = fmt.Errorf("source data is missing, update the source")
	ErrInvalidOperation        = fmt.Errorf("invalid operation")

	// Policy errors.
	ErrBlockedByPolicy             = fmt.Errorf("blocked by policy")
	ErrSourceAgreementsNotAccepted = fmt.Errorf("source agreements have not been accepted")

	// Persistence errors.
	ErrConcurrentModification      = fmt.Errorf("stream was modified concurrently")
	ErrPersistenceRetriesExhausted = fmt.Errorf("gave up writing source list after repeated conflicts")

	// Runtime errors.
	ErrNotValidState                 = fmt.Errorf("object is not in a valid state")
	ErrUnsupportedMatchField         = fmt.Errorf("match field is not supported by source")
	ErrRequiredMatchFieldMissing     = fmt.Errorf("source requires a match field that was not provided")
	ErrRequiredQueryParameterMissing = fmt.Errorf("source requires a query parameter that cannot be provided")
	ErrManifestNotFound              = fmt.Errorf("manifest not found")
	ErrManifestInvalid               = fmt.Errorf("invalid manifest")
	ErrPackageNotFound               = fmt.Errorf("package not found")
	ErrCorrelationScript             = fmt.Errorf("correlation script failed")

	// Transfer errors.
	ErrDownloadFailed    = fmt.Errorf("download failed")
	ErrFileHashMismatch  = fmt.Errorf("file hash mismatch")
	ErrInvalidPath       = fmt.Errorf("invalid path")
	ErrArchiveMissing    = fmt.Errorf("file not found in archive")
	ErrIndexDirectory    = fmt.Errorf("index source directory is invalid")
	ErrIndexInvalid      = fmt.Errorf("index is corrupt or uses an unsupported schema")
	ErrIndexOutputExists = fmt.Errorf("index output already exists (use --force to overwrite)")
)

// PolicyError reports that an action was rejected and which policy rejected it.
type PolicyError struct {
	Policy string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBlockedByPolicy.Error(), e.Policy)
}

func (e *PolicyError) Unwrap() error {
	return ErrBlockedByPolicy
}

// NewPolicyError returns a PolicyError for the given policy name.
func NewPolicyError(policy string) error {
	return &PolicyError{Policy: policy}
}

// BlockingPolicy returns the policy carried by err, if any.
func BlockingPolicy(err error) (string, bool) {
	var pe *PolicyError
	if stderrors.As(err, &pe) {
		return pe.Policy, true
	}
	return "", false
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrSourceNotFoundWithName names the missing source.
func ErrSourceNotFoundWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
}

// ErrSourceNameAlreadyExistsWithName names the conflicting source.
func ErrSourceNameAlreadyExistsWithName(name string) error {
	return fmt.Errorf("%w: %s", ErrSourceNameAlreadyExists, name)
}

// ErrInvalidSourceTypeWithName names the unknown type.
func ErrInvalidSourceTypeWithName(sourceType string) error {
	return fmt.Errorf("%w: %q", ErrInvalidSourceType, sourceType)
}
