// Package types holds the error taxonomy and small shared value types used
// across the planner factory subsystem.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind identifies a specific planner error variant.
type ErrorKind string

const (
	// KindNotFound means the requested name is absent from the registry.
	KindNotFound ErrorKind = "planner_not_found"

	// KindQuarantined means the requested planner is temporarily unusable.
	KindQuarantined ErrorKind = "planner_quarantined"

	// KindSandboxTimeout means an isolated import exceeded its deadline.
	KindSandboxTimeout ErrorKind = "sandbox_timeout"

	// KindSandboxImport means plugin code failed during import or
	// initialization.
	KindSandboxImport ErrorKind = "sandbox_import_error"

	// KindNoActivePlanners means selection found zero qualifying candidates.
	KindNoActivePlanners ErrorKind = "no_active_planners"
)

// PlannerError is the base error for the factory subsystem. Callers are
// expected to inspect Kind (via errors.As or the Is* helpers) and react:
// fall back, retry, or surface to an operator.
type PlannerError struct {
	// Kind identifies the variant.
	Kind ErrorKind

	// Planner is the planner name this error concerns, when applicable.
	Planner string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Context carries structured diagnostic details.
	Context map[string]any
}

// Error implements the error interface.
func (e *PlannerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap enables errors.Is/As traversal into the cause chain.
func (e *PlannerError) Unwrap() error {
	return e.Cause
}

// Is matches two PlannerErrors by kind.
func (e *PlannerError) Is(target error) bool {
	var pe *PlannerError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind
	}
	return false
}

// WithContext attaches a structured detail to the error.
func (e *PlannerError) WithContext(key string, value any) *PlannerError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewPlannerNotFound reports a name absent from the registry.
func NewPlannerNotFound(name string) *PlannerError {
	return &PlannerError{
		Kind:    KindNotFound,
		Planner: name,
		Message: fmt.Sprintf("planner %q not found", name),
	}
}

// NewPlannerQuarantined reports a quarantined planner.
func NewPlannerQuarantined(name, reason string) *PlannerError {
	e := &PlannerError{
		Kind:    KindQuarantined,
		Planner: name,
		Message: fmt.Sprintf("planner %q is quarantined", name),
	}
	if reason != "" {
		e.WithContext("reason", reason)
	}
	return e
}

// NewSandboxTimeout reports an import that exceeded its deadline.
func NewSandboxTimeout(name string, timeout time.Duration) *PlannerError {
	e := &PlannerError{
		Kind:    KindSandboxTimeout,
		Planner: name,
		Message: fmt.Sprintf("sandboxed import of %q exceeded %v", name, timeout),
	}
	return e.WithContext("timeout", timeout.String())
}

// NewSandboxImportError reports plugin code that failed during import.
func NewSandboxImportError(name string, cause error) *PlannerError {
	return &PlannerError{
		Kind:    KindSandboxImport,
		Planner: name,
		Message: fmt.Sprintf("import of %q failed", name),
		Cause:   cause,
	}
}

// NewNoActivePlanners reports a selection with zero qualifying candidates.
func NewNoActivePlanners(required []string) *PlannerError {
	msg := "no active planners available"
	if len(required) > 0 {
		msg = fmt.Sprintf("no active planners match capabilities [%s]", strings.Join(required, ", "))
	}
	e := &PlannerError{
		Kind:    KindNoActivePlanners,
		Message: msg,
	}
	return e.WithContext("required_capabilities", append([]string(nil), required...))
}

// IsPlannerError reports whether err is (or wraps) a PlannerError.
func IsPlannerError(err error) bool {
	var pe *PlannerError
	return errors.As(err, &pe)
}

// IsKind reports whether err is a PlannerError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PlannerError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}

// IsNotFound reports a KindNotFound error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsQuarantined reports a KindQuarantined error.
func IsQuarantined(err error) bool { return IsKind(err, KindQuarantined) }

// IsSandboxTimeout reports a KindSandboxTimeout error.
func IsSandboxTimeout(err error) bool { return IsKind(err, KindSandboxTimeout) }

// IsSandboxImport reports a KindSandboxImport error.
func IsSandboxImport(err error) bool { return IsKind(err, KindSandboxImport) }

// IsNoActivePlanners reports a KindNoActivePlanners error.
func IsNoActivePlanners(err error) bool { return IsKind(err, KindNoActivePlanners) }
