package attendance

import "errors"

// DefaultFailureMessage is shown when a failed submission carries no server message.
const DefaultFailureMessage = "Failed to mark attendance"

var (
	ErrUnauthenticated  = errors.New("attendance: viewer is not signed in")
	ErrWindowNotOpen    = errors.New("attendance: window is not open")
	ErrEmptyPassword    = errors.New("attendance: event password is required")
	ErrSubmitInProgress = errors.New("attendance: submission already in progress")
	ErrAlreadyAttended  = errors.New("attendance: already marked")
)

// SubmitError is a rejected or failed attendance request.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// serverMessager is implemented by transport errors that carry a message
// decoded from the backend's response body.
type serverMessager interface {
	ServerMessage() string
}

// FailureMessage picks the text to show for a failed submission: the server's
// message verbatim when there is one, DefaultFailureMessage otherwise.
func FailureMessage(err error) string {
	var m serverMessager
	if errors.As(err, &m) {
		if msg := m.ServerMessage(); msg != "" {
			return msg
		}
	}
	return DefaultFailureMessage
}
