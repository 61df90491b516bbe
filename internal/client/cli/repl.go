package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/vaultcli/internal/client/session"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasCredential() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	List(ctx context.Context, filter string) error
	Find(ctx context.Context, text string) error
	Shift(ctx context.Context, forward bool) error
	Page(ctx context.Context, n string) error
	Queue(ctx context.Context) error
	Add(ctx context.Context, paths []string) error
	Drop(ctx context.Context, idx string) error
	Upload(ctx context.Context) error
	Remove(ctx context.Context, fileID string) error
	Download(ctx context.Context, link string) error
	Stats(ctx context.Context) error
	Username(ctx context.Context, name string) error
	Avatar(ctx context.Context, path string) error
	SaveAvatar(ctx context.Context) error
}

// commandAreas maps each command to the area the route gate checks.
// Commands not listed are public.
var commandAreas = map[string]session.Area{
	"register":   session.AreaLogin,
	"login":      session.AreaLogin,
	"logout":     session.AreaDashboard,
	"whoami":     session.AreaDashboard,
	"ls":         session.AreaDashboard,
	"find":       session.AreaDashboard,
	"next":       session.AreaDashboard,
	"prev":       session.AreaDashboard,
	"page":       session.AreaDashboard,
	"queue":      session.AreaDashboard,
	"add":        session.AreaDashboard,
	"drop":       session.AreaDashboard,
	"upload":     session.AreaDashboard,
	"rm":         session.AreaDashboard,
	"username":   session.AreaDashboard,
	"avatar":     session.AreaDashboard,
	"saveavatar": session.AreaDashboard,
}

const (
	helpPublic = "Available commands: register, login, download <link>, stats, help, exit"
	helpUser   = "Available commands: whoami, ls [filter], find <text>, next, prev, page <n>, " +
		"queue, add <paths...>, drop <idx>, upload, rm <fileId>, download <link>, stats, " +
		"username <name>, avatar <path>, saveavatar, logout, help, exit"
)

// admit applies the route gate to cmd and explains a refusal.
func admit(a execIface, cmd string) bool {
	want, ok := commandAreas[cmd]
	if !ok {
		return true
	}
	switch got := session.Guard(want, a.hasCredential()); {
	case got == want:
		return true
	case got == session.AreaLogin:
		printlnFn("Please log in first (type 'login' or 'register').")
	default:
		printlnFn("Already logged in; 'logout' first.")
	}
	return false
}

// runREPL starts a simple read–eval–print loop for the vault CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' after the route gate admits it. The loop
// exits on EOF or when the user types "exit" or "quit".
//
// Errors returned by command handlers have already been reported to the
// user through notifications; the loop only prints what is not covered
// there and carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("vault %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		if ctx.Err() != nil {
			return
		}
		if !admit(a, cmd) {
			continue
		}

		var cmdErr error
		switch cmd {
		case "help":
			if a.hasCredential() {
				printlnFn(helpUser)
			} else {
				printlnFn(helpPublic)
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "whoami":
			cmdErr = a.Whoami(ctx)
		case "ls":
			cmdErr = a.List(ctx, strings.Join(args, " "))
		case "find":
			cmdErr = a.Find(ctx, strings.Join(args, " "))
		case "next":
			cmdErr = a.Shift(ctx, true)
		case "prev":
			cmdErr = a.Shift(ctx, false)
		case "page":
			if len(args) != 1 {
				printlnFn("Usage: page <n>")
				continue
			}
			cmdErr = a.Page(ctx, args[0])
		case "queue":
			cmdErr = a.Queue(ctx)
		case "add":
			if len(args) == 0 {
				printlnFn("Usage: add <path> [path...]")
				continue
			}
			cmdErr = a.Add(ctx, args)
		case "drop":
			if len(args) != 1 {
				printlnFn("Usage: drop <idx>")
				continue
			}
			cmdErr = a.Drop(ctx, args[0])
		case "upload":
			cmdErr = a.Upload(ctx)
		case "rm":
			if len(args) != 1 {
				printlnFn("Usage: rm <fileId>")
				continue
			}
			cmdErr = a.Remove(ctx, args[0])
		case "download":
			if len(args) != 1 {
				printlnFn("Usage: download <link>")
				continue
			}
			cmdErr = a.Download(ctx, args[0])
		case "stats":
			cmdErr = a.Stats(ctx)
		case "username":
			if len(args) == 0 {
				printlnFn("Usage: username <name>")
				continue
			}
			cmdErr = a.Username(ctx, strings.Join(args, " "))
		case "avatar":
			if len(args) != 1 {
				printlnFn("Usage: avatar <path>")
				continue
			}
			cmdErr = a.Avatar(ctx, args[0])
		case "saveavatar":
			cmdErr = a.SaveAvatar(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if msg := inputProblem(cmdErr); msg != "" {
			printlnFn(msg)
		}
	}
}

// Shell runs the interactive loop until EOF or exit. The session is
// bootstrapped first so the prompt shows the signed-in user.
func (a *App) Shell(ctx context.Context) error {
	printlnFn("Welcome to the vault CLI (type 'help' for commands)")
	if a.hasCredential() {
		if err := a.session.Bootstrap(ctx); err != nil {
			a.reportFetchFailure(ctx, err)
		}
	}
	runREPL(ctx, a, a.status, a.reader)
	return nil
}
