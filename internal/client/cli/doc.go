// Package cli is the terminal front end of the vault client.
//
// It offers an interactive shell (see runREPL) and one-shot cobra commands
// (see NewRootCommand). Both drive the same App, which wires the REST client,
// the session manager, the upload orchestrator, the download protocol and
// the list paginator together.
//
// Share links printed after an upload contain the decryption key; they are
// written to the terminal only and never logged.
package cli
