package submission

import "fmt"

// MalformedResponseError means the backend answered 2xx with a shape the
// gateway does not recognize.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Reason)
}
