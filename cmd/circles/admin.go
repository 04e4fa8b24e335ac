package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/db"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	switch args[0] {
	case "migrate":
		return runMigrate(args[1:])
	case "issue-token":
		return runIssueToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  circles admin migrate [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  circles admin issue-token --user-id <uuid> [--name <name>] [--email <email>] [--picture <url>] [--ttl 168h]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to CIRCLES_DB_DSN.")
	fmt.Fprintln(os.Stderr, "  - issue-token signs with CIRCLES_JWT_SECRET.")
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dbDSN string
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to CIRCLES_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if dbDSN == "" {
		dbDSN = strings.TrimSpace(os.Getenv("CIRCLES_DB_DSN"))
	}
	if dbDSN == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set CIRCLES_DB_DSN)")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dbDSN, db.PoolSettings{MaxConns: 2, MinConns: 1})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Migrations applied.")
	return 0
}

func runIssueToken(args []string) int {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var userID string
	var name string
	var email string
	var picture string
	var ttl time.Duration

	fs.StringVar(&userID, "user-id", "", "User UUID")
	fs.StringVar(&name, "name", "", "Display name")
	fs.StringVar(&email, "email", "", "Email address")
	fs.StringVar(&picture, "picture", "", "Avatar URL")
	fs.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to CIRCLES_SESSION_DAYS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || id == uuid.Nil {
		fmt.Fprintln(os.Stderr, "--user-id must be a non-nil UUID")
		return 2
	}
	if ttl == 0 {
		var session struct {
			Days int `env:"CIRCLES_SESSION_DAYS" envDefault:"7"`
		}
		if err := env.Parse(&session); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid session configuration: %v\n", err)
			return 2
		}
		ttl = time.Duration(session.Days) * 24 * time.Hour
	}
	if ttl <= 0 {
		fmt.Fprintln(os.Stderr, "--ttl must be positive")
		return 2
	}

	secret := os.Getenv("CIRCLES_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "CIRCLES_JWT_SECRET is required")
		return 2
	}

	token, err := auth.CreateToken(auth.Principal{
		ID:    id,
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Image: strings.TrimSpace(picture),
	}, secret, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create token: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, token)
	return 0
}
