package direct

import (
	"fmt"

	"github.com/copyleftdev/divrect/internal/optimization"
)

// evaluationError describes a rejected objective evaluation. It matches
// optimization.ErrNonFiniteEvaluation and, when the objective itself failed,
// the objective's error.
type evaluationError struct {
	point []float64
	value float64
	cause error
}

func (e *evaluationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("at normalized point %v: %v", e.point, e.cause)
	}
	return fmt.Sprintf("at normalized point %v: %v", e.point, optimization.ErrNonFiniteEvaluation)
}

func (e *evaluationError) Unwrap() []error {
	if e.cause != nil {
		return []error{optimization.ErrNonFiniteEvaluation, e.cause}
	}
	return []error{optimization.ErrNonFiniteEvaluation}
}

func configError(format string, args ...interface{}) error {
	return optimization.WrapErrorf(optimization.ErrInvalidConfig, format, args...).
		WithComponent("direct").
		WithOperation("validate")
}
