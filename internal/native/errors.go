package native

import "fmt"

// Error is a failure reported by the native layer, decoded from its error
// code where one is available.
type Error struct {
	Op      string // primitive that failed, e.g. "aws_event_loop_group_new_default"
	Code    int32  // native error code, 0 when unknown
	Name    string // symbolic name, e.g. "AWS_ERROR_OOM"
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return fmt.Sprintf("%s: %s (%s, code %d)", e.Op, e.Message, e.Name, e.Code)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
	}
}
