package exitcode

// Exit codes for relaychat commands
const (
	Success          = 0
	Error            = 1
	Usage            = 2
	SubmissionFailed = 3
	Unreachable      = 4
	Cancelled        = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}

// BadUsage reports invalid arguments or flags.
func BadUsage(msg string) ExitError { return ExitError{Code: Usage, Message: msg} }
