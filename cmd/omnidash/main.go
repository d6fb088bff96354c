package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/config"
	"github.com/thesavant42/omnidash/internal/db"
	"github.com/thesavant42/omnidash/internal/ui"
)

// errUsage is returned after usage has been printed
var errUsage = errors.New("invalid usage")

// interactive reports whether prompts and pickers can be shown
var interactive = ui.Interactive

// app carries everything a subcommand needs; built once in run
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *db.DB
	wayback api.WaybackSource
	items   api.ItemSource
	out     io.Writer
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"available", "available <url>", "Closest archived capture of a URL", cmdAvailable},
	{"cdx", "cdx <url> [--limit N] [--year YYYY] [--cached]", "List captures from the CDX index", cmdCDX},
	{"timeline", "timeline <url> [--cached]", "Captures per year", cmdTimeline},
	{"save", "save <url>", "Request a new capture (Save Page Now)", cmdSave},
	{"download", "download <waybackURL | timestamp original>", "Download one capture into the store", cmdDownload},
	{"download-all", "download-all <url> [--year YYYY] [--pick] [--include-errors]", "Download many captures", cmdDownloadAll},
	{"snapshots", "snapshots list | show <id> | delete <id> | sites", "Manage saved snapshots", cmdSnapshots},
	{"export", "export [--format F] [--strip-html] [--copy] [--out DIR] [--stdout]", "Export saved snapshots", cmdExport},
	{"backup", "backup [--out DIR]", "Copy the snapshot database", cmdBackup},
	{"metadata", "metadata <identifier>", "Archive.org item metadata", cmdMetadata},
	{"views", "views <identifier>", "Archive.org item view counts", cmdViews},
	{"creds", "creds set | status | delete", "Manage stored archive.org keys", cmdCreds},
	{"config", "config list | get <key> | set <key> <value> | unset <key>", "Persisted settings", cmdConfig},
	{"serve", "serve", "Run the credential backend", cmdServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		switch {
		case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
			os.Exit(2)
		case errors.Is(err, ui.ErrCancelled), errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(130)
		default:
			ui.PrintError(err.Error())
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("omnidash", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	cfg, rest, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		printUsage(fs)
		return errUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", rest[0])
		printUsage(fs)
		return errUsage
	}

	logger := newLogger(cfg.Debug)

	store := db.Open(cfg.DBPath, logger)
	defer store.Close()

	// persisted settings fill in whatever env and flags left unset
	if cmd.name != "config" {
		settings, err := store.GetSettings(ctx)
		if err != nil {
			logger.Warn("Could not read stored settings", "db", cfg.DBPath, "err", err)
		} else if err := cfg.ApplySettings(settings); err != nil {
			return err
		}
	}

	a := &app{cfg: cfg, logger: logger, store: store, out: out}
	a.wayback, a.items = api.NewSources(cfg, logger)

	return cmd.run(ctx, a, rest[1:])
}

func newLogger(debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

func printUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: omnidash [global flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-64s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fs.PrintDefaults()
}

// parseArgs parses flags placed before, between or after positional arguments
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// needArgs checks the positional count and prints the usage line when it is wrong
func needArgs(args []string, n int, usage string) error {
	if len(args) != n {
		fmt.Fprintf(os.Stderr, "usage: omnidash %s\n", usage)
		return errUsage
	}
	return nil
}

// targetArg returns the single URL argument, asking for it on a terminal
func targetArg(args []string, usage string) (string, error) {
	if len(args) == 0 && interactive() {
		return ui.PromptForURL()
	}
	if err := needArgs(args, 1, usage); err != nil {
		return "", err
	}
	return args[0], nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// spin runs action behind a spinner
func spin(ctx context.Context, title string, action func(context.Context) error) error {
	return ui.RunWithSpinner(ctx, title, action)
}
