// Package sehatauth is the identity and sequence engine behind SehatBridge:
// patient and hospital accounts, password login, OTP-based password recovery,
// external identity sign-in and OPD registration numbers.
//
// Build an [Engine] with [New], configure it through the [Builder] and call
// its methods from any number of goroutines.
//
// # Architecture boundaries
//
// sehatauth is the public surface. Credential hashing (password), tokens
// (jwt), account persistence (account), reset codes (otp), code delivery
// (notify), counters (sequence) and OPD intake (intake) are separate packages
// the Engine composes. Attempt limiting and audit dispatch live under
// internal/.
//
// # What this package must NOT do
//
//   - Read configuration from the environment. Keys and settings arrive
//     through [Config].
//   - Log plaintext passwords, reset codes or tokens.
//   - Tell a caller whether a login failed on the email or the password.
package sehatauth
