// Package echoerr defines the failure categories of the echo server and client
// and maps each of them to a distinct process exit code.
package echoerr

import (
	"errors"
	"fmt"
	"os"
)

// Kind is a failure category. A Kind is itself an error so that it can be used
// as a sentinel with errors.Is.
type Kind int

const (
	SocketCreate Kind = iota + 1 // The socket resource could not be allocated
	Bind                         // The address could not be bound (e.g. port in use)
	Listen                       // The bound socket could not be put into listening state
	Accept                       // Accepting the client connection failed
	Connect                      // The server is unreachable or refused the connection
	Send                         // Writing a message or reply failed
	Read                         // Reading a message or reply failed
)

// Exit codes returned by the binaries. Each Kind has its own code; ExitUsage
// covers configuration and command-line errors.
const (
	ExitOK    = 0
	ExitUsage = 1
)

var kindNames = map[Kind]string{
	SocketCreate: "socket create",
	Bind:         "bind",
	Listen:       "listen",
	Accept:       "accept",
	Connect:      "connect",
	Send:         "send",
	Read:         "read",
}

// String returns a human-readable name for the category.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Error implements error.
func (k Kind) Error() string {
	return k.String() + " error"
}

// ExitCode returns the process exit code for the category.
func (k Kind) ExitCode() int {
	if _, ok := kindNames[k]; !ok {
		return ExitUsage
	}

	return int(k) + 1
}

// Error is a categorized failure. Op names the operation that failed
// (e.g. "listen tcp :12345") and Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err in an *Error of the given kind. It returns nil if err is nil.
//
// Parameters:
//   - kind: The failure category
//   - op: A short description of the failed operation
//   - err: The underlying error
//
// Returns:
//   - An *Error, or nil when err is nil
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind.String(), e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind.String(), e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the category of err, or 0 if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var k Kind
	if errors.As(err, &k) {
		return k
	}

	return 0
}

// ExitCode maps err to a process exit code: ExitOK for nil, the category's
// code for categorized errors, and ExitUsage for everything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if k := KindOf(err); k != 0 {
		return k.ExitCode()
	}

	return ExitUsage
}

// ClassifyListen categorizes an error returned by net.Listen by the syscall
// that failed. Failures that do not name a syscall count as Listen errors.
func ClassifyListen(op string, err error) error {
	if err == nil {
		return nil
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		switch sysErr.Syscall {
		case "socket":
			return New(SocketCreate, op, err)
		case "bind":
			return New(Bind, op, err)
		}
	}

	return New(Listen, op, err)
}
