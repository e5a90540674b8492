// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errs defines the error vocabulary surfaced to the host, split
// across the three categories in the form engine's error-handling
// design: definition errors (compile time), wiring/registration errors
// (form-registration time), and evaluation errors (request time, which
// are values rather than thrown errors — see EvalError).
package errs

import "fmt"

// Kind tags which of the host-visible error categories an error belongs
// to, so adapters can map it to a transport-level response without a
// type switch over concrete struct types.
type Kind string

const (
	KindInvalidNode        Kind = "InvalidNode"
	KindUnknownNodeType    Kind = "UnknownNodeType"
	KindDuplicateRoute     Kind = "DuplicateRoute"
	KindRegistryDuplicate  Kind = "RegistryDuplicate"
	KindRegistryValidation Kind = "RegistryValidation"
	KindAccessDenied       Kind = "AccessDenied"
)

// DefinitionError is raised at compile time when a JSON definition node
// is malformed or its type tag is unrecognized. It carries enough
// context (the offending raw node and the expectation that was
// violated) for a host to report a useful diagnostic.
type DefinitionError struct {
	Kind     Kind
	Expected string
	Actual   string
	Raw      any
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

// InvalidNode reports a domain-required field missing or a non-object
// input, per spec.md §4.2.
func InvalidNode(expected, actual string, raw any) error {
	return &DefinitionError{Kind: KindInvalidNode, Expected: expected, Actual: actual, Raw: raw}
}

// UnknownNodeType reports a type tag absent or outside the known
// universe of node shapes.
func UnknownNodeType(actual string, raw any) error {
	return &DefinitionError{Kind: KindUnknownNodeType, Expected: "known node type", Actual: actual, Raw: raw}
}

// Is implements errors.Is matching by Kind, so callers can write
// errors.Is(err, errs.ErrInvalidNode) without caring about the payload.
func (e *DefinitionError) Is(target error) bool {
	t, ok := target.(*DefinitionError)
	if !ok {
		return false
	}
	if t.Expected == "" && t.Actual == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Expected == t.Expected && e.Actual == t.Actual
}

// ErrInvalidNode and ErrUnknownNodeType are sentinel placeholders usable
// with errors.Is to test only the Kind, ignoring payload.
var (
	ErrInvalidNode     = &DefinitionError{Kind: KindInvalidNode}
	ErrUnknownNodeType = &DefinitionError{Kind: KindUnknownNodeType}
)

// RouteError is raised at form-registration time when two steps resolve
// to the same full HTTP path.
type RouteError struct {
	Kind     Kind
	FullPath string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%s: %s already registered", e.Kind, e.FullPath)
}

func (e *RouteError) Is(target error) bool {
	t, ok := target.(*RouteError)
	return ok && e.Kind == t.Kind
}

// DuplicateRoute reports two steps mounting the same fullPath.
func DuplicateRoute(fullPath string) error {
	return &RouteError{Kind: KindDuplicateRoute, FullPath: fullPath}
}

var ErrDuplicateRoute = &RouteError{Kind: KindDuplicateRoute}

// RegistryError is raised when registering a function or component
// fails: a duplicate name, or a registration missing required fields.
type RegistryError struct {
	Kind Kind
	Name string
	Msg  string
}

func (e *RegistryError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

func (e *RegistryError) Is(target error) bool {
	t, ok := target.(*RegistryError)
	return ok && e.Kind == t.Kind
}

// RegistryDuplicate reports registering a name that's already taken.
func RegistryDuplicate(name string) error {
	return &RegistryError{Kind: KindRegistryDuplicate, Name: name}
}

// RegistryValidation reports a registration missing required spec
// fields (e.g. no Evaluate function).
func RegistryValidation(name, msg string) error {
	return &RegistryError{Kind: KindRegistryValidation, Name: name, Msg: msg}
}

var (
	ErrRegistryDuplicate  = &RegistryError{Kind: KindRegistryDuplicate}
	ErrRegistryValidation = &RegistryError{Kind: KindRegistryValidation}
)

// AccessDeniedError is the typed outcome of an ACCESS transition that
// did not yield continue or redirect.
type AccessDeniedError struct {
	Status int
	NodeID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: node %s, status %d", KindAccessDenied, e.NodeID, e.Status)
}

func (e *AccessDeniedError) Is(target error) bool {
	_, ok := target.(*AccessDeniedError)
	return ok
}

func AccessDenied(nodeID string, status int) error {
	return &AccessDeniedError{Status: status, NodeID: nodeID}
}

var ErrAccessDenied = &AccessDeniedError{}

// EvalError is an evaluation-time failure value (spec.md §7.3): it is
// never thrown as a Go error on a recoverable path. Operators (NOT,
// AND, OR, PIPELINE, ...) inspect it directly and decide locally
// whether to recover. It only escapes as a thrown error when a
// handler's caller has no recovery semantics of its own (e.g. a
// top-level evaluate() call with no enclosing predicate).
type EvalError struct {
	NodeID  string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error at %s: %s", e.NodeID, e.Message)
}

// NewEvalError constructs an EvalError value for a given node.
func NewEvalError(nodeID, message string) *EvalError {
	return &EvalError{NodeID: nodeID, Message: message}
}
