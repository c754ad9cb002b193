// mirrorctl manages the SQLite mirror store: applying migrations and dumping
// a month's partition document.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"humidity-monitor/internal/config"
	"humidity-monitor/internal/db"
	"humidity-monitor/internal/db/migrate"
	"humidity-monitor/internal/docstore"
	"humidity-monitor/internal/logging"
	"humidity-monitor/internal/mirror"
)

var version = "dev"

const usage = `usage: %s <command>
  migrate          apply pending schema migrations
  dump [YYYY-MM]   print the partition document for the configured location
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.SQLitePath == "" {
		fmt.Fprintln(os.Stderr, "SQLITE_PATH is not set")
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg, version, "mirrorctl"))

	conn, err := db.Open(cfg.SQLitePath, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	err = runCommand(ctx, cfg, conn, os.Args[1], os.Args[2:])
	if closeErr := db.Close(conn); closeErr != nil {
		slog.Error("db close", "err", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg config.Config, conn *sql.DB, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		if err := migrate.Run(ctx, conn); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil

	case "dump":
		month := time.Now()
		if len(args) > 0 {
			var err error
			month, err = time.ParseInLocation("2006-01", args[0], time.Local)
			if err != nil {
				return fmt.Errorf("invalid month %q (expected YYYY-MM)", args[0])
			}
		}
		key := mirror.PartitionKey(cfg.Location, month)
		entries, err := docstore.NewSQLiteStore(conn).Get(ctx, cfg.Site, key)
		if err != nil {
			return err
		}
		if entries == nil {
			return fmt.Errorf("no document %s/%s", cfg.Site, key)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)

	default:
		return fmt.Errorf("unknown command")
	}
}
