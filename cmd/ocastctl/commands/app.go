package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/pkg/ocast"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Start and stop web applications on a receiver",
}

var appStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the configured web application",
	Long: `start launches the application named by --app (or the config file)
and waits for it to join the command channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			if err := dev.StartApplication(ctx); err != nil {
				return err
			}
			fmt.Printf("application %s running\n", dev.ApplicationName())
			return nil
		})
	},
}

var appStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the configured web application",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			if err := dev.StopApplication(ctx); err != nil {
				return err
			}
			fmt.Printf("application %s stopped\n", dev.ApplicationName())
			return nil
		})
	},
}

func init() {
	appCmd.AddCommand(appStartCmd)
	appCmd.AddCommand(appStopCmd)
	rootCmd.AddCommand(appCmd)
}
