package pipeline

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/textpipe/internal/capability"
)

// Sentinel errors for the pipeline package.
var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrUnregisteredStage is returned when a name has no registered factory.
	ErrUnregisteredStage = errors.New("unregistered stage")

	// ErrStageConstruction is returned when a factory fails to build its stage.
	ErrStageConstruction = errors.New("stage construction failed")

	// ErrRequirementNotSatisfied is returned when a stage is placed before the
	// stages providing what it needs.
	ErrRequirementNotSatisfied = errors.New("stage requirement not satisfied")

	// ErrStageFailed is returned when a stage's Apply fails during a run.
	ErrStageFailed = errors.New("stage failed")

	// ErrEmptyPipeline is returned when no stage names were given.
	ErrEmptyPipeline = errors.New("no stages configured")

	// ErrMissingProperty is returned when a required property is absent.
	ErrMissingProperty = errors.New("missing required property")
)

// StageError attributes a construction or run failure to a stage.
type StageError struct {
	Stage string
	Kind  error // ErrStageConstruction or ErrStageFailed
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %q: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// RequirementError names the first unmet capability and the stage needing it.
type RequirementError struct {
	Stage   string
	Missing capability.Capability
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("stage %q requires %q, which no earlier stage provides", e.Stage, e.Missing)
}

func (e *RequirementError) Unwrap() error {
	return ErrRequirementNotSatisfied
}
