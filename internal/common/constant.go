// Package common contains shared constants and small helpers used across
// vaultcli components.
package common

// SessionCookieName is the cookie that carries the session credential issued
// by the vault API.
const SessionCookieName = "session"

// RequestIDHeaderName is the header used to correlate a request with the
// client log line that describes it.
const RequestIDHeaderName = "X-Request-ID"
