package treesitter

import "errors"

var ErrDisabled = errors.New("treesitter disabled")
var ErrUnsupported = errors.New("treesitter unsupported language")

// Boundary is one syntactic unit span. Line rows are 0-based and half-open:
// [StartLine, EndLine).
type Boundary struct {
	StartLine int
	EndLine   int
}
