package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner to stderr.
func PrintBanner(config *Config, logger *Logger) {
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	art := []string{
		` 88888888888 8888888 .d8888b.  888    d8P  888      8888888888`,
		`     888       888  d88P  Y88b 888   d8P   888      888`,
		`     888       888  888    888 888  d8P    888      888`,
		`     888       888  888        888d88K     888      8888888`,
		`     888       888  888        8888888b    888      888`,
		`     888       888  888    888 888  Y88b   888      888`,
		`     888       888  Y88b  d88P 888   Y88b  888      888`,
		`     888     8888888 "Y8888P"  888    Y88b 88888888 8888888888`,
	}

	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s  Guess the ticker of the day%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvLines := [][2]string{
		{"Version", Version},
		{"Build", Build},
		{"Commit", GitCommit},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Storage", config.Storage.Backend},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)

	logger.Info().
		Str("version", Version).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Str("storage", config.Storage.Backend).
		Msg("Application started")
}

// PrintShutdownBanner displays the application shutdown banner to stderr.
func PrintShutdownBanner(logger *Logger) {
	hr := banner.ColorCyan + strings.Repeat("═", 42) + banner.ColorReset
	fmt.Fprintf(os.Stderr, "\n%s\n%s  TICKLE SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)

	logger.Info().Msg("Application shutting down")
}
