// Package werrors carries the two error taxonomies of spec §4.2/§4.11:
// accumulated structural ValidationErrors produced by graph.FromDef, and
// the runtime ExecutionError kinds produced by the transaction machinery.
package werrors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind enumerates the structural checks of spec §4.2.
type ValidationKind string

const (
	MissingNode               ValidationKind = "MissingNode"
	MissingPort                ValidationKind = "MissingPort"
	UnknownOperation           ValidationKind = "UnknownOperation"
	SignatureMismatch          ValidationKind = "SignatureMismatch"
	UnwiredInput               ValidationKind = "UnwiredInput"
	UnreachableNode            ValidationKind = "UnreachableNode"
	InvalidBoundaryConnection  ValidationKind = "InvalidBoundaryConnection"
)

// ValidationError is a single structural defect found while building a
// graph.Graph from a definition. Schematic/Node/Port identify where the
// defect was found; any of them may be empty when not applicable.
type ValidationError struct {
	Kind      ValidationKind
	Schematic string
	Node      string
	Port      string
	Detail    string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Schematic != "" {
		fmt.Fprintf(&b, " in schematic %q", e.Schematic)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " at node %q", e.Node)
	}
	if e.Port != "" {
		fmt.Fprintf(&b, " port %q", e.Port)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// ValidationErrors accumulates every defect found during a single FromDef
// pass (spec §4.2: "Errors are accumulated (not first-fail)").
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	lines := make([]string, len(e.Errors))
	for i, sub := range e.Errors {
		lines[i] = sub.Error()
	}
	return fmt.Sprintf("%d validation error(s):\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

// Add appends a validation error, constructing it from the given fields.
func (e *ValidationErrors) Add(kind ValidationKind, schematic, node, port, detail string) {
	e.Errors = append(e.Errors, &ValidationError{
		Kind: kind, Schematic: schematic, Node: node, Port: port, Detail: detail,
	})
}

// OrNil returns e if it holds at least one error, or nil otherwise — the
// idiom FromDef uses so callers can treat the result as a normal `error`.
func (e *ValidationErrors) OrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ExecutionKind enumerates the runtime error kinds of spec §4.11.
type ExecutionKind string

const (
	InvalidState     ExecutionKind = "InvalidState"
	ComponentError   ExecutionKind = "ComponentError"
	OperationFailure ExecutionKind = "OperationFailure"
	PayloadMissing   ExecutionKind = "PayloadMissing"
	MissingPortName  ExecutionKind = "MissingPortName"
	MissingComponent ExecutionKind = "MissingComponent"
	TooManyComplete  ExecutionKind = "TooManyComplete"
	Timeout          ExecutionKind = "Timeout"
)

// ExecutionError is a runtime failure attributed to a node, transaction, or
// the interpreter itself. Fatal reports whether it should abort the
// enclosing transaction (spec §7's rule of thumb: state-machine violations
// are fatal, packet-level errors are not).
type ExecutionError struct {
	Kind    ExecutionKind
	TxID    string
	Node    string
	Message string
	Fatal   bool
	cause   error
}

// NewExecutionError builds a fatal ExecutionError of the given kind.
func NewExecutionError(kind ExecutionKind, txID, node, message string) *ExecutionError {
	return &ExecutionError{Kind: kind, TxID: txID, Node: node, Message: message, Fatal: true}
}

// Wrap attaches an underlying cause for errors.Unwrap/errors.Is chains.
func (e *ExecutionError) Wrap(cause error) *ExecutionError {
	e.cause = cause
	return e
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Node != "" {
		fmt.Fprintf(&b, " at node %q", e.Node)
	}
	if e.TxID != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.cause }

// IsExecutionKind reports whether err is an *ExecutionError of kind k.
func IsExecutionKind(err error, k ExecutionKind) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Kind == k
	}
	return false
}
