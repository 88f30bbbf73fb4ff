package progress

type Status string

const (
	StatusConnected   Status = "connected"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// IsTerminal reports whether no further events follow this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Event is the normalized progress record pushed verbatim to subscribers.
type Event struct {
	Percent float64 `json:"percent"`
	Status  Status  `json:"status"`
	Message string  `json:"message,omitempty"`
}

func Connected() Event {
	return Event{Percent: 0, Status: StatusConnected}
}

func Completed() Event {
	return Event{Percent: 100, Status: StatusCompleted}
}

// Failed builds the terminal error event. The percent is left at zero, the
// subscriber only relies on the message.
func Failed(err error) Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Event{Status: StatusError, Message: msg}
}
