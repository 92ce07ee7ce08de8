package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why handling a notification failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfig
	KindFetch
	KindDecode
	KindResize
	KindEncode
	KindUpload
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindFetch:
		return "fetch"
	case KindDecode:
		return "decode"
	case KindResize:
		return "resize"
	case KindEncode:
		return "encode"
	case KindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
