package domain

import (
	"errors"
	"fmt"
)

// Kind tags a failure so hosts can present it without parsing messages.
type Kind string

const (
	KindPathNotFound      Kind = "path_not_found"
	KindRootAlreadyExists Kind = "root_already_exists"
	KindFolderNotFound    Kind = "folder_not_found"
	KindEmptyFolder       Kind = "empty_folder"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindMalformedTable    Kind = "malformed_table"
	KindTransport         Kind = "transport"
	KindIO                Kind = "io"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrPathNotFound      = &Error{Kind: KindPathNotFound}
	ErrRootAlreadyExists = &Error{Kind: KindRootAlreadyExists}
	ErrFolderNotFound    = &Error{Kind: KindFolderNotFound}
	ErrEmptyFolder       = &Error{Kind: KindEmptyFolder}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrMalformedTable    = &Error{Kind: KindMalformedTable}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrIO                = &Error{Kind: KindIO}
)

// Error is a tagged failure carrying a human-readable message.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (or error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a tagged error. err may be nil.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Errorf builds a tagged error with a formatted message and no cause.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost tagged error in err's chain,
// or "" when err carries no tag.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
