// Package middleware adapts session token checks to HTTP routers.
//
//   - [RequireToken] guards fiber routes.
//   - [Guard] guards net/http handlers.
//   - [RequireGatewaySecret] admits only the trusted identity gateway.
//
// Tokens are read from the x-auth-token header, falling back to
// "Authorization: Bearer". Validation is delegated to
// sehatauth.Engine.ValidateToken; this package never parses tokens itself.
package middleware
