package exchange

import "fmt"

// Error classifies an exchange failure. Warning-class errors mean the
// local state change already took effect and only the notification to
// the partner failed.
type Error struct {
	PartnerID  string
	StatusCode int
	Warning    bool
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exchange with %s: %s: %v", e.PartnerID, e.Msg, e.Err)
	}
	return fmt.Sprintf("exchange with %s: %s", e.PartnerID, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsWarning reports whether err is a warning-class exchange error.
func IsWarning(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Warning
	}
	return false
}
