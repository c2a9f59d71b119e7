// Package commands implements the ocastctl command tree: discovery,
// application control, media and settings operations against OCast
// receivers on the local network.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/internal/config"
	"github.com/xpanvictor/goocast/pkg/Logger"
)

var (
	flagDebug    bool
	flagDevice   string
	flagApp      string
	flagTimeout  time.Duration
	flagInsecure bool
)

var rootCmd = &cobra.Command{
	Use:   "ocastctl",
	Short: "Control OCast receivers on the local network",
	Long: `ocastctl discovers OCast receivers over SSDP and drives them through
the DIAL application service and the websocket command channel.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "uuid or friendly name of the target device (default: first found)")
	rootCmd.PersistentFlags().StringVar(&flagApp, "app", "", "web application name")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall command timeout")
	rootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "skip TLS verification toward the receiver")
}

// loadSettings merges the optional config file with a zero-value fallback,
// so ocastctl works from flags alone.
func loadSettings() *config.Settings {
	settings, err := config.Load()
	if err != nil {
		return &config.Settings{}
	}
	return settings
}

func newLogger(settings *config.Settings) *Logger.Logger {
	return Logger.New(flagDebug || settings.Debug)
}
