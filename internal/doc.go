// Package internal holds small helpers shared by the sehatauth packages:
// reset-code generation and log redaction.
package internal
