package patch

// Apply returns source with script applied. Operations run from last to first
// so that anchors, which always refer to the original file, stay valid. The
// source slice is not modified.
//
// Unless opts.AllowOverlap is set the script is validated first. An operation
// whose anchor or removal range falls outside the current lines fails with
// CodeOutOfRange and no output is returned.
//
// Applying the same script twice is not a no-op: the second pass uses anchors
// computed against the original file.
func Apply(source []string, script Script, opts Options) ([]string, error) {
	if !opts.AllowOverlap {
		if err := Validate(script); err != nil {
			return nil, err
		}
	}
	lines := make([]string, len(source))
	copy(lines, source)
	for i := len(script) - 1; i >= 0; i-- {
		var err error
		lines, err = applyOperation(lines, script[i], i+1)
		if err != nil {
			return nil, err
		}
	}
	return NormalizeTerminators(lines), nil
}

func applyOperation(lines []string, op Operation, number int) ([]string, error) {
	switch op.Type {
	case OperationAppend:
		at := op.Index + 1
		if at < 0 || at > len(lines) {
			return nil, operationError(CodeOutOfRange, number, op,
				"append anchor %d is outside the file (%d lines)", op.Anchor, len(lines))
		}
		return splice(lines, at, 0, op.Lines), nil
	case OperationChange:
		if op.Index < 0 || op.RemoveCount < 0 || op.Index+op.RemoveCount > len(lines) {
			return nil, operationError(CodeOutOfRange, number, op,
				"change of %d line(s) at anchor %d exceeds the file (%d lines)", op.RemoveCount, op.Anchor, len(lines))
		}
		return splice(lines, op.Index, op.RemoveCount, op.Lines), nil
	default:
		return nil, operationError(CodeUnsupported, number, op, "unsupported operation %q", op.Type)
	}
}

func splice(target []string, index, deleteCount int, replacement []string) []string {
	if deleteCount == 0 && len(replacement) == 0 {
		return target
	}
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}
