package task

import (
	"errors"
	"strings"
)

// ClientError is a rejected submission. It is reported synchronously and no
// driver is started for it.
type ClientError struct {
	Msg    string
	Fields []string
}

func (e *ClientError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	return e.Msg + " (" + strings.Join(e.Fields, ", ") + ")"
}

// TransportError is a network or I/O failure of a fetch.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// EngineError is a failure of the transcoder, prober or subtitle extractor.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *EngineError) Unwrap() error { return e.Err }

func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}
