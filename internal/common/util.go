package common

import "strings"

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used for passwords read from the terminal once they have been sent.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// WithTrailingSlash returns s with exactly one trailing '/'. Relative API
// paths are resolved against the base URL, so the base must end with one.
func WithTrailingSlash(s string) string {
	return strings.TrimRight(s, "/") + "/"
}
