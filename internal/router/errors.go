package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type Kind int

const (
	KindInvalidHandle Kind = iota + 1
	KindTransientBackendFailure
	KindPermanentBackendFailure
	KindModalityUnavailable
	KindCanceled
	KindInvalidArgument
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidHandle:
		return "invalid handle"
	case KindTransientBackendFailure:
		return "transient backend failure"
	case KindPermanentBackendFailure:
		return "permanent backend failure"
	case KindModalityUnavailable:
		return "modality unavailable"
	case KindCanceled:
		return "canceled"
	case KindInvalidArgument:
		return "invalid argument"
	case KindUnsupported:
		return "unsupported operation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrInvalidHandle           = &Error{Kind: KindInvalidHandle}
	ErrTransientBackendFailure = &Error{Kind: KindTransientBackendFailure}
	ErrPermanentBackendFailure = &Error{Kind: KindPermanentBackendFailure}
	ErrModalityUnavailable     = &Error{Kind: KindModalityUnavailable}
	ErrCanceled                = &Error{Kind: KindCanceled}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
	ErrUnsupported             = &Error{Kind: KindUnsupported}
)

// Error carries enough context to explain to an end user why access to a
// dataset failed.
type Error struct {
	Kind     Kind
	Handle   string
	Op       string
	Modality types.Modality // classification reached, meaningful for KindModalityUnavailable
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("dsroute: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Handle != "" {
		b.WriteString(e.Handle)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Kind == KindModalityUnavailable {
		b.WriteString(" (")
		b.WriteString(e.Modality.String())
		b.WriteString(")")
	}
	switch {
	case e.Reason != "":
		b.WriteString(": ")
		b.WriteString(e.Reason)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Handle == "" && t.Op == ""
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
