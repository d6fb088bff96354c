package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thesavant42/omnidash/internal/db"
	"github.com/thesavant42/omnidash/internal/export"
	"github.com/thesavant42/omnidash/internal/ui"
)

const snapshotsUsage = "snapshots list | show <id> | delete <id> [--yes] | sites"

func cmdSnapshots(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return needArgs(args, 1, snapshotsUsage)
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		snaps, err := a.store.GetAllSnapshots(ctx)
		if err != nil {
			return err
		}
		a.printf("%s", ui.RenderSnapshotTable(snaps, ui.DefaultLayout().InnerWidth, time.Local))
		return nil

	case "show":
		fs := flag.NewFlagSet("snapshots show", flag.ContinueOnError)
		preview := fs.Int("preview", 500, "Characters of content to show (0 hides it)")
		args, err := parseArgs(fs, args)
		if err != nil {
			return err
		}
		if err := needArgs(args, 1, "snapshots show <id> [--preview N]"); err != nil {
			return err
		}
		snap, err := a.store.GetSnapshot(ctx, args[0])
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("no snapshot with id %q", args[0])
		}
		if err != nil {
			return err
		}
		a.printf("%s", ui.RenderSnapshot(snap, *preview))
		return nil

	case "delete":
		fs := flag.NewFlagSet("snapshots delete", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "Do not ask for confirmation")
		args, err := parseArgs(fs, args)
		if err != nil {
			return err
		}
		if err := needArgs(args, 1, "snapshots delete <id> [--yes]"); err != nil {
			return err
		}
		if !*yes && interactive() && !ui.Confirm("Delete snapshot?", args[0]) {
			return ui.ErrCancelled
		}
		if err := a.store.DeleteSnapshot(ctx, args[0]); errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("no snapshot with id %q", args[0])
		} else if err != nil {
			return err
		}
		ui.PrintSuccess("Deleted " + args[0])
		return nil

	case "sites":
		stats, err := a.store.SnapshotCountsBySite(ctx)
		if err != nil {
			return err
		}
		a.printf("%s", ui.RenderSiteCounts(stats))
		return nil
	}

	fmt.Fprintf(os.Stderr, "unknown snapshots command %q\n", sub)
	return needArgs(nil, 1, snapshotsUsage)
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "", "json, csv, text, sql or xlsx")
	strip := fs.Bool("strip-html", false, "Export visible text instead of raw HTML")
	copyOut := fs.Bool("copy", false, "Copy to the clipboard instead of writing a file")
	outDir := fs.String("out", a.cfg.ExportDir, "Directory for the export file")
	stdout := fs.Bool("stdout", false, "Write to standard output")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs(args, 0, "export [--format F] [--strip-html] [--copy] [--out DIR] [--stdout]"); err != nil {
		return err
	}

	name := *format
	if name == "" {
		if !interactive() {
			name = "json"
		} else if name, err = ui.PromptForFormat(export.Formats()); err != nil {
			return err
		}
	}
	exporter, err := export.ForFormat(name)
	if err != nil {
		return err
	}

	snaps, err := a.store.GetAllSnapshots(ctx)
	if err != nil {
		return err
	}
	opts := export.Options{StripHTML: *strip}

	switch {
	case *copyOut:
		text, err := export.ClipboardText(exporter, snaps, opts)
		if err != nil {
			return err
		}
		if err := export.CopyToClipboard(text); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Copied %d snapshots as %s", len(snaps), exporter.Format()))
	case *stdout:
		return export.Run(exporter, snaps, opts, a.out)
	default:
		path, err := export.WriteFile(*outDir, exporter, snaps, opts, time.Now())
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Exported %d snapshots to %s", len(snaps), path))
	}
	return nil
}

func cmdBackup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	outDir := fs.String("out", a.cfg.ExportDir, "Directory for the backup file")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs(args, 0, "backup [--out DIR]"); err != nil {
		return err
	}

	// make sure the file exists and nothing is mid-write
	if _, err := a.store.Conn(ctx); err != nil {
		return err
	}
	if err := a.store.Close(); err != nil {
		return err
	}

	path, err := export.BackupDatabase(a.cfg.DBPath, *outDir, time.Now())
	if err != nil {
		return err
	}
	ui.PrintSuccess("Database backed up to " + path)
	return nil
}
