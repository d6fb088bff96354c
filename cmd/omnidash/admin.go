package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/config"
	"github.com/thesavant42/omnidash/internal/server"
	"github.com/thesavant42/omnidash/internal/ui"
	"github.com/thesavant42/omnidash/internal/vault"
)

// openVault opens the credential file. Writing requires a stable key,
// otherwise the file would be unreadable on the next run.
func (a *app) openVault(forWrite bool) (*vault.Vault, error) {
	if forWrite && strings.TrimSpace(a.cfg.EncryptionKey) == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be set (64 hex chars) to store credentials")
	}
	return vault.New(a.cfg.CredentialsFile, a.cfg.EncryptionKey, a.logger)
}

// credentials prefers keys from the environment, then the vault
func (a *app) credentials() (accessKey, secretKey string) {
	if a.cfg.AccessKey != "" && a.cfg.SecretKey != "" {
		return a.cfg.AccessKey, a.cfg.SecretKey
	}
	if strings.TrimSpace(a.cfg.EncryptionKey) == "" {
		return a.cfg.AccessKey, a.cfg.SecretKey
	}
	v, err := a.openVault(false)
	if err != nil {
		a.logger.Warn("Credential vault unavailable", "err", err)
		return a.cfg.AccessKey, a.cfg.SecretKey
	}
	creds, err := v.Load()
	if err != nil {
		if !errors.Is(err, vault.ErrNoCredentials) {
			a.logger.Warn("Could not read stored credentials", "err", err)
		}
		return a.cfg.AccessKey, a.cfg.SecretKey
	}
	return creds.AccessKey, creds.SecretKey
}

const credsUsage = "creds set [--access KEY --secret KEY] | status | delete [--yes]"

func cmdCreds(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return needArgs(args, 1, credsUsage)
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "set":
		fs := flag.NewFlagSet("creds set", flag.ContinueOnError)
		access := fs.String("access", "", "Archive.org access key")
		secret := fs.String("secret", "", "Archive.org secret key")
		if _, err := parseArgs(fs, args); err != nil {
			return err
		}
		v, err := a.openVault(true)
		if err != nil {
			return err
		}
		if *access == "" || *secret == "" {
			if !interactive() {
				return fmt.Errorf("access key and secret key are required")
			}
			if *access, *secret, err = ui.PromptForCredentials(); err != nil {
				return err
			}
		}
		if err := v.Save(vault.Credentials{AccessKey: *access, SecretKey: *secret}); err != nil {
			return err
		}
		ui.PrintSuccess("Credentials saved securely to " + v.Path())
		return nil

	case "status":
		v, err := a.openVault(false)
		if err != nil {
			return err
		}
		st := v.Status()
		if !st.HasCredentials {
			ui.PrintInfo("No credentials stored")
			return nil
		}
		a.printf("Credentials stored for access key %s\n", *st.AccessKeyPreview)
		return nil

	case "delete":
		fs := flag.NewFlagSet("creds delete", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "Do not ask for confirmation")
		if _, err := parseArgs(fs, args); err != nil {
			return err
		}
		if !*yes && interactive() && !ui.Confirm("Delete stored credentials?", a.cfg.CredentialsFile) {
			return ui.ErrCancelled
		}
		v, err := a.openVault(false)
		if err != nil {
			return err
		}
		if err := v.Delete(); err != nil {
			return err
		}
		ui.PrintSuccess("Credentials deleted")
		return nil
	}

	fmt.Fprintf(os.Stderr, "unknown creds command %q\n", sub)
	return needArgs(nil, 1, credsUsage)
}

const configUsage = "config list | get <key> | set <key> <value> | unset <key>"

func cmdConfig(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return needArgs(args, 1, configUsage)
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		settings, err := a.store.GetSettings(ctx)
		if err != nil {
			return err
		}
		for _, key := range config.SettingKeys() {
			value, ok := settings[key]
			if !ok {
				value = "(unset)"
			}
			a.printf("%-12s %s\n", key, value)
		}
		return nil

	case "get":
		if err := needArgs(args, 1, "config get <key>"); err != nil {
			return err
		}
		value, err := a.store.GetSetting(ctx, args[0])
		if err != nil {
			return err
		}
		a.printf("%s\n", value)
		return nil

	case "set":
		if err := needArgs(args, 2, "config set <key> <value>"); err != nil {
			return err
		}
		if err := config.ValidateSetting(args[0], args[1]); err != nil {
			return fmt.Errorf("invalid value for %s: %w (keys: %s)", args[0], err, strings.Join(config.SettingKeys(), ", "))
		}
		if err := a.store.SetSetting(ctx, args[0], strings.TrimSpace(args[1])); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("%s = %s", args[0], args[1]))
		return nil

	case "unset":
		if err := needArgs(args, 1, "config unset <key>"); err != nil {
			return err
		}
		if err := a.store.DeleteSetting(ctx, args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Unset " + args[0])
		return nil
	}

	fmt.Fprintf(os.Stderr, "unknown config command %q\n", sub)
	return needArgs(nil, 1, configUsage)
}

// archiveHosts are the only upstreams the backend proxy will call
var archiveHosts = []string{"archive.org"}

func cmdServe(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 0, "serve"); err != nil {
		return err
	}
	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	v, err := a.openVault(false)
	if err != nil {
		return err
	}
	router := server.NewRouter(v, server.Options{
		AllowedOrigins: a.cfg.AllowedOrigins,
		ValidateURL:    strings.TrimRight(a.cfg.MetadataEndpoint, "/") + "/internetarchive",
		ProxyHosts:     archiveHosts,
		Fetcher:        api.NewFetcher(&http.Client{Timeout: a.cfg.HTTPTimeout}, "", nil, a.logger),
	}, a.logger)

	// request logs are Info level
	if !a.cfg.Debug {
		a.logger.SetLevel(log.InfoLevel)
	}
	return server.Serve(ctx, a.cfg.BackendAddr, router, a.logger)
}
