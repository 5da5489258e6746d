package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"folio/internal/assets"
	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/media"
	"folio/internal/memory"
	"folio/internal/startup"
	"folio/internal/trash"
)

const defaultPurgeAge = 720 * time.Hour

// library is the set of services a command works on.
type library struct {
	db    *database.Database
	store *assets.Store
	trash *trash.Coordinator
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	memory.ConfigureFromEnv()
	if err := media.InitVips(); err != nil {
		logging.Debug("libvips unavailable, using pure Go decoders: %v", err)
	} else {
		defer media.ShutdownVips()
	}

	dataDir := startup.DataDirFromEnv()
	lib, err := openLibrary(ctx, startup.NewLayout(dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure FOLIO_DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}

	code := run(ctx, lib, os.Args[1:], os.Stdout, os.Stderr)
	if err := lib.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
	os.Exit(code)
}

func openLibrary(ctx context.Context, layout startup.Layout) (*library, error) {
	db, err := database.New(ctx, layout.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	store, err := assets.New(db, assets.Config{
		OriginalsDir:  layout.OriginalsDir,
		ThumbnailsDir: layout.ThumbnailsDir,
		Throttle:      memory.NewGuard(memory.DefaultGuardConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open asset store: %w", err)
	}
	return &library{db: db, store: store, trash: trash.New(db, store)}, nil
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, lib *library, args []string, stdout, stderr io.Writer) int {
	var err error
	switch args[0] {
	case "regen":
		err = regen(ctx, lib, stdout)
	case "verify":
		err = verify(ctx, lib, stdout)
	case "status":
		err = status(ctx, lib, stdout)
	case "purge":
		age := defaultPurgeAge
		if len(args) > 1 {
			age, err = time.ParseDuration(args[1])
			if err != nil || age < 0 {
				fmt.Fprintf(stderr, "Error: invalid age %q\n", sanitizeArg(args[1]))
				return 1
			}
		}
		err = purge(ctx, lib, age, time.Now(), stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeArg(args[0]))
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// sanitizeArg replaces every character outside [a-zA-Z0-9_.-] so user input
// cannot inject terminal escapes into the output.
func sanitizeArg(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Folio library maintenance")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: folio-regen <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  regen        - Rebuild every thumbnail")
	fmt.Fprintln(w, "  verify       - Report missing originals and thumbnails")
	fmt.Fprintln(w, "  status       - Print catalog counts")
	fmt.Fprintf(w, "  purge [age]  - Delete trash entries older than age (default: %v)\n", defaultPurgeAge)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  FOLIO_DATA_DIR - Library data directory")
}

func regen(ctx context.Context, lib *library, w io.Writer) error {
	start := time.Now()
	report, err := lib.store.RegenerateAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Regenerated %d of %d thumbnails in %v\n",
		report.Regenerated, report.Total, time.Since(start).Round(time.Millisecond))
	if len(report.Failed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(report.Failed))
	for id := range report.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  FAILED %s: %v\n", id, report.Failed[id])
	}
	return fmt.Errorf("%d thumbnails could not be regenerated", len(report.Failed))
}

func verify(ctx context.Context, lib *library, w io.Writer) error {
	problems, err := lib.store.Verify(ctx)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(w, "All image files present")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(w, "  %s: missing %s\n", p.AssetID, strings.Join(p.Missing, ", "))
	}
	return fmt.Errorf("%d images have missing files", len(problems))
}

func status(ctx context.Context, lib *library, w io.Writer) error {
	stats, err := lib.db.LibraryStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Catalog:  %s\n", lib.db.Path())
	fmt.Fprintf(w, "Images:   %d live, %d in trash\n", stats.LiveAssets, stats.TrashedAssets)
	fmt.Fprintf(w, "Folders:  %d live, %d in trash\n", stats.LiveFolders, stats.TrashedFolders)
	fmt.Fprintf(w, "Tags:     %d\n", stats.Tags)
	return nil
}

func purge(ctx context.Context, lib *library, age time.Duration, now time.Time, w io.Writer) error {
	summary, err := lib.trash.PurgeOlderThan(ctx, now.Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, summary.String())
	for _, f := range summary.Failures {
		fmt.Fprintf(w, "  FAILED %s %s: %s\n", f.Type, f.ID, f.Message)
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d trash entries could not be removed", len(summary.Failures))
	}
	return nil
}
