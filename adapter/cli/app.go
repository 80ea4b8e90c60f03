// Package cli holds the cobra command tree shared by the binaries.
package cli

import (
	"log/slog"

	"github.com/hostfolio/hostfolio/internal/app"
)

var (
	container *app.Container
	logger    = slog.Default()
)

// SetContainer installs the dependency container for the commands.
func SetContainer(c *app.Container) {
	container = c
	if c != nil {
		logger = c.Logger
	}
}

// GetApp returns the installed container, nil when none is set.
func GetApp() *app.Container {
	return container
}

// Logger returns the CLI logger.
func Logger() *slog.Logger {
	return logger
}
