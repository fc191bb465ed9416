// Package audit implements asynchronous event dispatching for identity
// operations: registrations, logins, reset-code issue and checks, password
// resets, external sign-ins and OPD submissions.
//
// The Engine decides which events to emit; this package only buffers them
// and hands them to a [Sink].
package audit
