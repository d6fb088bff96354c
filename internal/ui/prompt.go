package ui

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
)

// sanitizeInput removes null bytes and other invisible control characters from input
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		// Keep printable characters and normal whitespace (space, tab, newline)
		if r == 0 || (r < 32 && r != '\t' && r != '\n' && r != '\r') {
			return -1
		}
		return r
	}, s)
}

// runForm runs a themed form, mapping user aborts to ErrCancelled
func runForm(groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithTheme(NewAppTheme()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return err
}

// validateTargetURL accepts bare hosts as well as full URLs
func validateTargetURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if strings.ContainsAny(s, " \t") {
		return fmt.Errorf("url cannot contain spaces")
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid url")
		}
	}
	return nil
}

// PromptForURL asks for the target URL to look up
func PromptForURL() (string, error) {
	var target string
	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("Target URL").
			Description("A page or domain to look up in the Wayback Machine").
			Placeholder("example.com").
			Value(&target).
			Validate(validateTargetURL),
	))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sanitizeInput(target)), nil
}

// PromptForCredentials asks for an archive.org S3-style key pair
func PromptForCredentials() (accessKey, secretKey string, err error) {
	required := func(name string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s cannot be empty", name)
			}
			return nil
		}
	}

	err = runForm(huh.NewGroup(
		huh.NewInput().
			Title("Archive.org Access Key").
			Description("From archive.org/account/s3.php").
			Value(&accessKey).
			Validate(required("access key")),
		huh.NewInput().
			Title("Archive.org Secret Key").
			Description("Stored encrypted, never shown again").
			EchoMode(huh.EchoModePassword).
			Value(&secretKey).
			Validate(required("secret key")),
	))
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sanitizeInput(accessKey)), strings.TrimSpace(sanitizeInput(secretKey)), nil
}

// PromptForFormat lets the user pick an export format
func PromptForFormat(formats []string) (string, error) {
	if len(formats) == 0 {
		return "", fmt.Errorf("no export formats available")
	}
	choice := formats[0]
	options := make([]huh.Option[string], 0, len(formats))
	for _, f := range formats {
		options = append(options, huh.NewOption(strings.ToUpper(f), f))
	}

	err := runForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Export Format").
			Options(options...).
			Value(&choice),
	))
	if err != nil {
		return "", err
	}
	return choice, nil
}

// Confirm asks a yes/no question; cancelling counts as no
func Confirm(title, description string) bool {
	var ok bool
	err := runForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))
	if err != nil {
		return false
	}
	return ok
}
