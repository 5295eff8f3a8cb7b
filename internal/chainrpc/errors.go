package chainrpc

import "fmt"

// BroadcastError reports a rejected transaction broadcast, carrying the
// chain's response. It is terminal for the attempt: the tracker surfaces it
// instead of retrying past its budget.
type BroadcastError struct {
	Asset    string
	Response string
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("%s broadcast rejected: %s", e.Asset, e.Response)
}
