// Command chatadmin is the operator tool for the chat wrapper database.
//
//	chatadmin users
//	chatadmin create-user -login bob [-display "Bob"] [-admin]
//	chatadmin reset-password -login alice
//
// Passwords are read from the terminal without echo. The database path
// comes from DB_PATH (or .env) unless -db is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/config"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	"github.com/sakif/chat-wrapper/internal/repository/sqlite"
	"github.com/sakif/chat-wrapper/internal/service"
)

// readPassword is a seam for term.ReadPassword so tests need no terminal.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// newPasswordService is a seam so tests can use a cheap bcrypt cost.
var newPasswordService = auth.NewPasswordService

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "chatadmin: reading .env:", err)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "chatadmin:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: chatadmin [-db path] <users | create-user | reset-password> [flags]")
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	global := flag.NewFlagSet("chatadmin", flag.ContinueOnError)
	global.SetOutput(stdout)
	dbPath := global.String("db", cfg.DBPath, "path to the SQLite database")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		usage(stdout)
		return errors.New("missing command")
	}

	db, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	passwords := newPasswordService()
	sessions := service.NewSessionService(db.Sessions(), cfg.SessionTTL, nil, logger)
	authSvc := service.NewAuthService(db.Users(), sessions, passwords, ratelimit.New(), logger)
	adminSvc := service.NewAdminService(db.Users(), passwords, logger)

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "users":
		return listUsers(ctx, adminSvc, stdout)
	case "create-user":
		return createUser(ctx, adminSvc, rest, stdout)
	case "reset-password":
		return resetPassword(ctx, authSvc, rest, stdout)
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func listUsers(ctx context.Context, admin *service.AdminService, stdout io.Writer) error {
	users, err := admin.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOGIN\tID\tDISPLAY NAME\tADMIN")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.LoginName, u.ID, u.DisplayName, u.IsAdmin)
	}
	return tw.Flush()
}

func createUser(ctx context.Context, admin *service.AdminService, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("create-user", flag.ContinueOnError)
	flags.SetOutput(stdout)
	login := flags.String("login", "", "login name")
	display := flags.String("display", "", "display name (defaults to the login name)")
	isAdmin := flags.Bool("admin", false, "grant admin rights")
	if err := flags.Parse(args); err != nil {
		return err
	}

	password, err := promptNewPassword(stdout)
	if err != nil {
		return err
	}

	u, err := admin.CreateUser(ctx, service.CreateUserInput{
		LoginName:   *login,
		DisplayName: *display,
		Password:    password,
		IsAdmin:     *isAdmin,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created user %s (id %s)\n", u.LoginName, u.ID)
	return nil
}

func resetPassword(ctx context.Context, authSvc *service.AuthService, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	flags.SetOutput(stdout)
	login := flags.String("login", "", "login name of the account")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *login == "" {
		return errors.New("-login is required")
	}

	password, err := promptNewPassword(stdout)
	if err != nil {
		return err
	}

	u, err := authSvc.ResetPassword(ctx, *login, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "password reset for %s; all sessions revoked\n", u.LoginName)
	return nil
}

// promptNewPassword reads the password twice and checks both entries match.
func promptNewPassword(stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "New password: ")
	first, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(stdout, "Repeat password: ")
	second, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
