// Package models defines client-side data models used by the vault CLI:
// the session user and its authoritative upload list, queued local files,
// upload descriptors returned by the server and aggregate statistics.
package models
