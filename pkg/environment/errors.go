package environment

import (
	"errors"
	"fmt"

	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/hashicorp/go-multierror"
)

var (
	ErrInvalidDimensions = errors.New("grid dimensions must be positive")
	ErrOutOfBounds       = errors.New("cell is out of bounds")
	ErrGoalCollision     = errors.New("cell conflicts with the end position")
	ErrWallCollision     = errors.New("cell conflicts with a wall")
	ErrActorCollision    = errors.New("cell conflicts with another actor")

	ErrAlreadyRunning = errors.New("world is already running")
	ErrActorIndex     = errors.New("no such actor")
)

// Violation is a single broken construction rule.
type Violation struct {
	Kind     error         // one of the Err* sentinels above
	Subject  string        // "wall", "actor" or "end"
	Cell     core.Position // offending cell
	Bound    string        // violated bound, for ErrOutOfBounds
	Conflict core.Position // conflicting cell, for collisions
}

func (v *Violation) Error() string {
	switch v.Kind {
	case ErrOutOfBounds:
		return fmt.Sprintf("%s at %s is out of %s", v.Subject, v.Cell, v.Bound)
	case ErrGoalCollision:
		return fmt.Sprintf("%s at %s conflicts with end position %s", v.Subject, v.Cell, v.Conflict)
	case ErrWallCollision:
		return fmt.Sprintf("%s at %s conflicts with wall at %s", v.Subject, v.Cell, v.Conflict)
	case ErrActorCollision:
		return fmt.Sprintf("%s at %s conflicts with actor at %s", v.Subject, v.Cell, v.Conflict)
	default:
		return fmt.Sprintf("%s at %s: %v", v.Subject, v.Cell, v.Kind)
	}
}

func (v *Violation) Unwrap() error {
	return v.Kind
}

// ConfigError carries every violation found while building a world.
type ConfigError struct {
	errs *multierror.Error
}

func (e *ConfigError) Error() string {
	return "invalid world configuration: " + e.errs.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.errs
}

// Violations returns the individual violations in detection order.
func (e *ConfigError) Violations() []*Violation {
	out := make([]*Violation, 0, e.errs.Len())
	for _, err := range e.errs.WrappedErrors() {
		var v *Violation
		if errors.As(err, &v) {
			out = append(out, v)
		}
	}
	return out
}

// validation accumulates violations for one construction attempt.
type validation struct {
	errs *multierror.Error
}

func (c *validation) add(v *Violation) {
	c.errs = multierror.Append(c.errs, v)
}

func (c *validation) err() error {
	if c.errs.ErrorOrNil() == nil {
		return nil
	}
	c.errs.ErrorFormat = formatViolations
	return &ConfigError{errs: c.errs}
}

func formatViolations(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	s := fmt.Sprintf("%d violations:", len(errs))
	for _, err := range errs {
		s += "\n\t* " + err.Error()
	}
	return s
}
