// Package client contains the transport layer of the vault CLI.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     the vault REST surface: account, auth/login, auth/register,
//     auth/logout, upload, delete, file, download, stats, account/username and
//     account/avatar.
//  2. A concrete net/http implementation (see HTTPClient) that keeps the
//     session cookie in a jar, persists it through a CookieStore, tags every
//     request with an X-Request-ID and maps HTTP statuses to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations), wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrConflict,
// ErrRejected, ErrBadResponse. Non-2xx responses are *StatusError values that
// unwrap to those sentinels and carry the server's message, if any.
//
// # Secrets
//
// Download sends the fragment key only in the JSON request body. Neither the
// key nor any request body is logged.
package client
