package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// geminiModelsURL is a lightweight endpoint that rejects invalid keys.
var geminiModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
// This is used to determine if we can run the interactive setup wizard.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard collects the API keys and the premium secret and saves
// them to the config file. Returns true if the server should continue
// starting.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Virtual Fitting Room - First-time Setup"))
	fmt.Println()

	var apiKeys, premiumSecret string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Keys").
				Description("One key, or several separated by commas. Get yours at https://aistudio.google.com/apikey").
				Value(&apiKeys).
				Validate(func(s string) error {
					keys := ParseList(s)
					if len(keys) == 0 {
						return errors.New("at least one API key is required")
					}
					for _, key := range keys {
						if err := validateGeminiKey(key); err != nil {
							return fmt.Errorf("key ending in %s: %w", keySuffix(key), err)
						}
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Premium Access Secret").
				Description("Unlocks 4K renderings. Leave empty to disable the premium tier.").
				EchoMode(huh.EchoModePassword).
				Value(&premiumSecret),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"GEMINI_API_KEYS":       strings.Join(ParseList(apiKeys), ","),
		"PREMIUM_ACCESS_SECRET": strings.TrimSpace(premiumSecret),
	}

	configPath, err := FilePath()
	if err == nil {
		err = WriteEnvFile(configPath, values)
	}
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()

	return true
}

func keySuffix(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[len(key)-4:]
}

// validateGeminiKey validates a Gemini API key by listing models.
func validateGeminiKey(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	res, err := resty.New().R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetError(&result).
		Get(geminiModelsURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	switch code := res.StatusCode(); {
	case code == 400 || code == 401 || code == 403:
		if result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", code)
	case code != 200:
		return fmt.Errorf("unexpected response (HTTP %d)", code)
	}
	return nil
}

// envFileOrder is the order variables are written to the config file.
var envFileOrder = []string{"GEMINI_API_KEYS", "PREMIUM_ACCESS_SECRET"}

// WriteEnvFile writes values to path. Uses restrictive permissions (0600)
// since the file contains secrets. Every line is checked to read back
// unchanged through godotenv before the file is touched.
func WriteEnvFile(path string, values map[string]string) error {
	var lines []string
	for _, key := range envFileOrder {
		val, ok := values[key]
		if !ok || val == "" {
			continue
		}
		line, err := envLine(key, val)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}
	return nil
}

// envLine formats one assignment. Single quotes keep the value literal, so
// bcrypt hashes survive without $ expansion; values that contain a single
// quote fall back to godotenv's double-quoted escaping.
func envLine(key, val string) (string, error) {
	line := fmt.Sprintf("%s='%s'", key, val)
	if strings.Contains(val, "'") {
		marshaled, err := godotenv.Marshal(map[string]string{key: val})
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", key, err)
		}
		line = marshaled
	}
	parsed, err := godotenv.Unmarshal(line)
	if err != nil || parsed[key] != val {
		return "", fmt.Errorf("%s contains characters that cannot be stored in %s", key, EnvFileName)
	}
	return line, nil
}

// WaitOnWindows pauses execution on Windows so users can see error messages
// before the console window closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs a fatal error and waits on Windows before exiting.
func FatalWithWait(format string, args ...interface{}) {
	log.Error().Msg(fmt.Sprintf(format, args...))
	WaitOnWindows()
	os.Exit(1)
}
