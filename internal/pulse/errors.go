package pulse

import "fmt"

// StructuralError reports an invalid object graph: dangling name
// references, mismatched channel sets, invalid jump targets. These are
// fatal to compilation and must surface before any hardware interaction.
type StructuralError struct {
	Object string // name of the offending object
	Index  int    // element/step index, -1 when not applicable
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("structural error in %q (index %d): %s", e.Object, e.Index, e.Reason)
	}
	return fmt.Sprintf("structural error in %q: %s", e.Object, e.Reason)
}

// NewStructuralError builds a StructuralError with no index context.
func NewStructuralError(object, reason string) *StructuralError {
	return &StructuralError{Object: object, Index: -1, Reason: reason}
}
