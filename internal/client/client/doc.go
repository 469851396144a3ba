// Package client talks to the tablescout REST API on behalf of the CLI.
//
// HTTPClient takes an explicit *session.Session. Every call that returns a
// token pair (register, login, refresh, partner registration) overwrites the
// session; authenticated calls carry its access token and, on a 401, refresh
// the pair once and retry. Concurrent callers that hit the same expired
// access token share a single refresh request. When the refresh itself is
// rejected the session is cleared and common.ErrSessionExpired is returned.
//
// Server error responses map to the sentinels in internal/common; transport
// failures wrap ErrUnavailable.
package client
