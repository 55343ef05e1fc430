package rdf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates a content type with no registered parser or writer.
	ErrUnsupportedFormat = errors.New("rdf: unsupported format")
	// ErrDecode indicates malformed percent-encoding in an RDF/POST body.
	ErrDecode = errors.New("rdf: malformed percent-encoding")
	// ErrStructure indicates a grammar violation the parser cannot recover from.
	ErrStructure = errors.New("rdf: structural error")
	// ErrUnboundPrefix indicates a prefixed name whose prefix was never declared.
	ErrUnboundPrefix = errors.New("rdf: unbound prefix")
	// ErrTokensExhausted is returned by Next after the last token.
	ErrTokensExhausted = errors.New("rdf: token sequence exhausted")
)

// FaultKind classifies fatal parse failures.
type FaultKind int

const (
	// NoFault is returned by FaultOf for errors that are not parse faults.
	NoFault FaultKind = iota
	// DecodeFault is a malformed percent-encoding.
	DecodeFault
	// StructuralFault is a fatal grammar violation.
	StructuralFault
)

func (k FaultKind) String() string {
	switch k {
	case DecodeFault:
		return "decode"
	case StructuralFault:
		return "structural"
	default:
		return "none"
	}
}

// ParseError provides structured context for parse failures.
type ParseError struct {
	Format  string    // Format name (e.g., "rdfpost", "ntriples")
	Kind    FaultKind // DecodeFault or StructuralFault
	Message string    // Human-readable description
	Line    int       // 1-based line number (0 if unknown)
	Column  int       // 1-based column number (0 if unknown)
	Err     error     // Underlying error
}

func (e *ParseError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Format)
	if e.Line > 0 {
		fmt.Fprintf(&msg, ":%d:%d", e.Line, e.Column)
	}
	msg.WriteString(": ")
	if e.Message != "" {
		msg.WriteString(e.Message)
	} else if e.Err != nil {
		msg.WriteString(e.Err.Error())
	}
	if e.Message != "" && e.Err != nil && !errors.Is(e.Err, ErrStructure) && !errors.Is(e.Err, ErrDecode) {
		msg.WriteString(": ")
		msg.WriteString(e.Err.Error())
	}
	return msg.String()
}

// Unwrap returns the fault sentinel together with the underlying error so that
// errors.Is matches both.
func (e *ParseError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case DecodeFault:
		sentinel = ErrDecode
	case StructuralFault:
		sentinel = ErrStructure
	}
	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil && e.Err != sentinel {
		errs = append(errs, e.Err)
	}
	return errs
}

// FaultOf returns the fault kind carried by err, or NoFault.
func FaultOf(err error) FaultKind {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Kind
	}
	return NoFault
}

func newStructuralError(format string, line, col int, err error, msg string, args ...any) *ParseError {
	return &ParseError{
		Format:  format,
		Kind:    StructuralFault,
		Message: fmt.Sprintf(msg, args...),
		Line:    line,
		Column:  col,
		Err:     err,
	}
}
