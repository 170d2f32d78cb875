package patch

// span returns the half-open range of original lines an operation touches.
// Appends touch nothing, so their span is empty and sits at the insertion
// point.
func (op Operation) span() (start, end int) {
	if op.Type == OperationChange {
		return op.Index, op.Index + op.RemoveCount
	}
	return op.Index + 1, op.Index + 1
}

// Validate reports whether the operations in script can be applied from last
// to first without one invalidating the anchor of another. Operations must be
// in ascending anchor order and their ranges must not overlap. Two appends at
// the same anchor, or an append directly after a change, are allowed.
func Validate(script Script) error {
	for i := 1; i < len(script); i++ {
		prev, next := script[i-1], script[i]
		_, prevEnd := prev.span()
		nextStart, _ := next.span()
		if prevEnd > nextStart {
			return operationError(CodeOverlap, i+1, next,
				"operation %d (%s) overlaps or precedes operation %d (%s)", i+1, next.Control, i, prev.Control)
		}
	}
	return nil
}
