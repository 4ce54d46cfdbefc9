package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Session calls that need an open connection.
	ErrNotConnected = errors.New("mailbox: session not connected")

	// ErrExhausted is returned when a cursor is advanced past its last message.
	ErrExhausted = errors.New("mailbox: no more messages")
)

// ConnectError reports an ordinary connection or authentication failure.
// Callers treat it as a failed result, not a crash.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed exchange with the server. Unlike
// ConnectError it is always propagated to the caller.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// FolderOpenError reports a folder that is missing or cannot be opened.
type FolderOpenError struct {
	Folder string
	Err    error
}

func (e *FolderOpenError) Error() string {
	return fmt.Sprintf("open folder %q: %v", e.Folder, e.Err)
}

func (e *FolderOpenError) Unwrap() error { return e.Err }

// ExtractionError reports a message whose content could not be read.
type ExtractionError struct {
	Folder string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract message in %q: %v", e.Folder, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
