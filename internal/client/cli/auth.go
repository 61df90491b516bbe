package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultcli/internal/client/session"
	"github.com/dmitrijs2005/vaultcli/internal/common"
)

var errPasswordMismatch = errors.New("passwords do not match")

// inputProblem returns a line for errors the user caused and that no
// notification has explained yet.
func inputProblem(err error) string {
	var ue usageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ue):
		return string(ue)
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, errPasswordMismatch):
		return err.Error()
	default:
		return ""
	}
}

// usageError is a malformed argument.
type usageError string

func (e usageError) Error() string { return string(e) }

// Register prompts for a username, an email and a password (twice) and
// creates the account. On success the new session is loaded.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errPasswordMismatch
	}

	if err := a.session.Register(ctx, username, email, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n", a.displayName())
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Login(ctx, email, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", a.displayName())
	return nil
}

// Logout ends the session. The local credential is forgotten even when the
// server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return err
}

// Whoami prints the signed-in account.
func (a *App) Whoami(ctx context.Context) error {
	u, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d), %d file(s)\n", u.Username, u.Email, u.ID, len(u.Uploads))
	return nil
}

func (a *App) displayName() string {
	if u := a.session.User(); u != nil {
		return u.Username
	}
	return "?"
}
