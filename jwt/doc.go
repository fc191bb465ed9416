// Package jwt issues and verifies the signed session tokens handed out after
// a successful login or external sign-in. HS256 with a shared secret is the
// default; Ed25519 with key rotation through a kid-indexed verify set is
// supported for deployments that split issuing and verifying services.
package jwt
