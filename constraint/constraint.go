package constraint

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	dispatch "github.com/goliatone/go-dispatch"
)

// Namespace carries contextual values (for example the acting role) that
// predicates may consult. The key set is a convention between workflow
// authors and call sites.
type Namespace map[string]any

// Value returns the raw value stored under key.
func (ns Namespace) Value(key string) (any, bool) {
	if ns == nil {
		return nil, false
	}
	v, ok := ns[key]
	return v, ok
}

// String returns the value under key formatted as a string, or "".
func (ns Namespace) String(key string) string {
	v, ok := ns.Value(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Predicate succeeds by returning nil and fails by returning a *Violation
// (or an *Errors aggregate). Any other error is treated as fatal to the
// evaluation and is returned unchanged.
type Predicate[T any] func(item T, ns Namespace) error

// Set is an ordered list of predicates.
type Set[T any] []Predicate[T]

// Evaluate runs every predicate in s. See Evaluate.
func (s Set[T]) Evaluate(item T, ns Namespace) error {
	return Evaluate(s, item, ns)
}

// Violation is a single failed constraint.
type Violation struct {
	Message  string
	Metadata map[string]any
}

// Violate builds a Violation with a formatted message.
func Violate(format string, args ...any) *Violation {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Violation{Message: msg}
}

func (v *Violation) Error() string {
	return v.Message
}

// WithMetadata attaches metadata and returns v.
func (v *Violation) WithMetadata(meta map[string]any) *Violation {
	if v.Metadata == nil {
		v.Metadata = make(map[string]any, len(meta))
	}
	for k, val := range meta {
		v.Metadata[k] = val
	}
	return v
}

// Errors aggregates the violations collected during one evaluation.
type Errors struct {
	errs []error
}

// NewErrors builds an aggregate from errs, flattening nested aggregates.
func NewErrors(errs ...error) *Errors {
	agg := &Errors{}
	for _, err := range errs {
		agg.add(err)
	}
	return agg
}

func (e *Errors) add(err error) {
	if err == nil {
		return
	}
	if nested, ok := err.(*Errors); ok {
		e.errs = append(e.errs, nested.errs...)
		return
	}
	e.errs = append(e.errs, err)
}

func (e *Errors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Unwrap exposes the collected violations to errors.Is / errors.As.
func (e *Errors) Unwrap() []error {
	return e.errs
}

// Is matches dispatch.ErrConstraintsFailed.
func (e *Errors) Is(target error) bool {
	return target == error(dispatch.ErrConstraintsFailed)
}

// Len returns the number of violations.
func (e *Errors) Len() int {
	if e == nil {
		return 0
	}
	return len(e.errs)
}

// Errors returns a copy of the collected violations.
func (e *Errors) Errors() []error {
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// Messages returns the violation messages in collection order.
func (e *Errors) Messages() []string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// AppError converts the aggregate into a go-errors error so callers can map
// it onto their own transport (for example an HTTP 403).
func (e *Errors) AppError() *goerrors.Error {
	return dispatch.WrapError(dispatch.ErrConstraintsFailed, e.Error(), e, map[string]any{
		"violations": e.Messages(),
	})
}

// IsViolation reports whether err is a constraint failure rather than an
// unexpected predicate error.
func IsViolation(err error) bool {
	if err == nil {
		return false
	}
	var v *Violation
	if errors.As(err, &v) {
		return true
	}
	var agg *Errors
	return errors.As(err, &agg)
}

// Evaluate runs the predicates in declared order against (item, ns). It
// does not stop at the first failure: every violation is collected and
// returned as one *Errors. An empty list is vacuously satisfied. A predicate
// returning something other than a violation aborts the evaluation and that
// error is returned unchanged.
func Evaluate[T any](preds []Predicate[T], item T, ns Namespace) error {
	if len(preds) == 0 {
		return nil
	}
	var agg *Errors
	for _, pred := range preds {
		if pred == nil {
			continue
		}
		err := pred(item, ns)
		if err == nil {
			continue
		}
		if !IsViolation(err) {
			return err
		}
		if agg == nil {
			agg = &Errors{}
		}
		agg.add(err)
	}
	if agg == nil {
		return nil
	}
	return agg
}

// Or succeeds when any branch evaluates cleanly. When every branch fails it
// returns an *Errors holding the first violation of each branch.
func Or[T any](branches ...Set[T]) Predicate[T] {
	return func(item T, ns Namespace) error {
		if len(branches) == 0 {
			return nil
		}
		reps := &Errors{}
		for _, branch := range branches {
			err := Evaluate(branch, item, ns)
			if err == nil {
				return nil
			}
			if agg, ok := err.(*Errors); ok {
				if agg.Len() > 0 {
					reps.errs = append(reps.errs, agg.errs[0])
				}
				continue
			}
			return err
		}
		return reps
	}
}

// All folds several predicates into one, aggregating like Evaluate.
func All[T any](preds ...Predicate[T]) Predicate[T] {
	return func(item T, ns Namespace) error {
		return Evaluate(preds, item, ns)
	}
}

// Not inverts pred: it fails with message when pred passes.
func Not[T any](pred Predicate[T], message string) Predicate[T] {
	return func(item T, ns Namespace) error {
		err := pred(item, ns)
		if err == nil {
			return Violate("%s", message)
		}
		if IsViolation(err) {
			return nil
		}
		return err
	}
}
