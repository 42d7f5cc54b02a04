// Package auth handles bearer tokens for nexus-chat.
//
// # Client Side
//
// The chat client reads its token from NEXUS_TOKEN, the configured
// server.token_file, or ~/.config/nexus/token, in that order. The token is
// sent as "Authorization: Bearer <token>" on the WebSocket handshake and on
// audio status requests. When the token is a JWT, Inspect reads its exp
// claim without verification so an expired token is reported before the
// first dial instead of surfacing as an endless reconnect loop.
//
// # Server Side
//
// A session token is an HS256 JWT with aud "nexus-chat", a required exp and
// the user id as sub; it opens /ws/{sub} and nothing else. Signer issues
// and verifies them for the fake backend, and HTTPAuthMiddleware puts the
// verified user id in the request context so the handler can match it
// against the path.
package auth
