// Package cliconf provides the flag/env/config-file binding shared by every
// cursorproxy subcommand: one place that wires a cobra command's flags,
// CURSORPROXY_* environment variables, and a cursorproxy.toml config file
// into a single viper.Viper with a consistent precedence order.
package cliconf

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/logging"
)

// EnvPrefix is the prefix every environment-variable override must carry.
const EnvPrefix = "CURSORPROXY"

// BindViper wires a command's flags into v with the standard config file
// search order and CURSORPROXY_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CURSORPROXY_* env vars → flags
func BindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("cursorproxy")
		v.SetConfigType("toml")
		for _, p := range ConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// ConfigPaths returns the ordered list of directories to search for
// cursorproxy.toml. Paths are ordered highest → lowest precedence (viper
// uses the first directory that contains the file), so a per-user config
// wins over a system-wide one.
func ConfigPaths() []string {
	var paths []string

	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			paths = append(paths, fmt.Sprintf(`%s\cursorproxy`, appdata))
		}
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, fmt.Sprintf(`%s\cursorproxy`, pd))
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, fmt.Sprintf("%s/.config/cursorproxy", home))
		}
		paths = append(paths, "/etc/cursorproxy")
	}

	return paths
}

// AddLoggingFlags adds the standard logging flags to a command.
func AddLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// AddConfigFlag adds the --config flag to a command.
func AddConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// SetupLogging reads logging flags from v and configures the global slog
// logger. Interactive runs (terminal attached, or --no-background) default
// to debug level when no explicit level was set; backgrounded runs default
// to info. The log.format and log.level config-file keys apply when the
// matching flag and env var are unset.
func SetupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	formatStr := v.GetString("log-format")
	if !v.IsSet("log-format") && v.IsSet("log.format") {
		formatStr = v.GetString("log.format")
	}
	format := logging.ParseFormat(formatStr)
	levelStr := v.GetString("log-level")
	if levelStr == "" {
		levelStr = v.GetString("log.level")
	}

	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
