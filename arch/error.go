package arch

import "fmt"

// ErrNotImplemented is returned for functionality the running platform
// does not provide.
type ErrNotImplemented struct {
	Feature string
	GOOS    string
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("%s is not implemented on %s", e.Feature, e.GOOS)
}
