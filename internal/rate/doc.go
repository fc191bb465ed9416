// Package rate provides Redis-backed fixed-window counters that throttle
// credential guessing and reset-code abuse.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes:
//   - rl:login:<kind>:<email>   failed logins per account
//   - rl:login-ip:<ip>          failed logins per client address
//   - rl:otp-verify:<email>     wrong reset codes
//   - rl:otp-request:<email>    reset-code requests
package rate
