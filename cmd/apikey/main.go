// Command apikey manages API keys directly in the pdnsadmin database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
)

const usage = "expected 'create', 'list' or 'revoke' subcommands"

// keyRepo is the database surface used by the CLI.
type keyRepo interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	CreateAPIKey(ctx context.Context, k database.APIKey) (int64, error)
	ListAPIKeys(ctx context.Context, ownerID int64) ([]database.APIKey, error)
	DeleteAPIKey(ctx context.Context, id int64) error
}

func main() {
	cfg, err := config.Load(config.ResolveConfigPath(""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	if err := run(os.Args, os.Stdout, db); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, repo keyRepo) error {
	if len(args) < 2 {
		return errors.New(usage)
	}

	switch args[1] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		user := fs.String("user", "", "Username owning the key")
		name := fs.String("name", "cli-key", "Description of the key")
		days := fs.Int("days", 0, "Validity in days (0 never expires)")
		if err := fs.Parse(args[2:]); err != nil {
			return fmt.Errorf("failed to parse create flags: %w", err)
		}
		return generateKey(repo, *user, *name, *days, out)
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		user := fs.String("user", "", "Only list keys of this user")
		if err := fs.Parse(args[2:]); err != nil {
			return fmt.Errorf("failed to parse list flags: %w", err)
		}
		return listKeys(repo, *user, out)
	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
		id := fs.String("id", "", "API key ID to revoke")
		if err := fs.Parse(args[2:]); err != nil {
			return fmt.Errorf("failed to parse revoke flags: %w", err)
		}
		return revokeKey(repo, *id, out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[1])
	}
}

func lookupUser(ctx context.Context, repo keyRepo, username string) (*database.User, error) {
	u, err := repo.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("unknown user %q", username)
	}
	return u, err
}

func generateKey(repo keyRepo, username, name string, days int, out io.Writer) error {
	if username == "" {
		return errors.New("-user is required")
	}
	ctx := context.Background()
	u, err := lookupUser(ctx, repo, username)
	if err != nil {
		return err
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return err
	}
	key := database.APIKey{
		Name:      name,
		Secret:    secret,
		CreatedBy: u.ID,
		CreatedAt: time.Now().UTC(),
	}
	if days > 0 {
		expires := key.CreatedAt.AddDate(0, 0, days)
		key.ExpiresAt = &expires
	}

	id, err := repo.CreateAPIKey(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	expires := "never"
	if key.ExpiresAt != nil {
		expires = key.ExpiresAt.Format(time.RFC3339)
	}
	fmt.Fprintf(out, "API Key Created Successfully!\n")
	fmt.Fprintf(out, "---------------------------\n")
	fmt.Fprintf(out, "ID:         %d\n", id)
	fmt.Fprintf(out, "User:       %s\n", u.Username)
	fmt.Fprintf(out, "Expires:    %s\n", expires)
	fmt.Fprintf(out, "VALUE:      %s\n", secret)
	fmt.Fprintf(out, "---------------------------\n")
	fmt.Fprintf(out, "CAUTION: This is the only time the key will be shown.\n")
	return nil
}

func listKeys(repo keyRepo, username string, out io.Writer) error {
	ctx := context.Background()
	var owner int64
	if username != "" {
		u, err := lookupUser(ctx, repo, username)
		if err != nil {
			return err
		}
		owner = u.ID
	}

	keys, err := repo.ListAPIKeys(ctx, owner)
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Fprintf(out, "%-6s %-20s %-15s %-8s\n", "ID", "Name", "User", "Status")
	for _, k := range keys {
		status := "active"
		switch {
		case k.Disabled:
			status = "disabled"
		case k.Expired(now):
			status = "expired"
		}
		fmt.Fprintf(out, "%-6d %-20s %-15s %-8s\n", k.ID, k.Name, k.CreatorUsername, status)
	}
	return nil
}

func revokeKey(repo keyRepo, rawID string, out io.Writer) error {
	if rawID == "" {
		return errors.New("ID is required for revocation")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key ID %q", rawID)
	}
	if err := repo.DeleteAPIKey(context.Background(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("API key %d not found", id)
		}
		return err
	}
	fmt.Fprintf(out, "API Key %d revoked (deleted)\n", id)
	return nil
}
