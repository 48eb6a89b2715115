package daemon

import (
	"os"

	"github.com/netxfw/netxmap/pkg/sdk"
)

// Options configures the daemon.
type Options struct {
	// ConfigPath is the YAML configuration file.
	ConfigPath string
	// Plugins overrides the built-in plugin list.
	Plugins []sdk.Plugin
	// Signals replaces the OS signal subscription.
	Signals <-chan os.Signal
}
