package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/pkg/ocast"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Query receiver settings and send input events",
}

var settingsUpdateStatusCmd = &cobra.Command{
	Use:   "update-status",
	Short: "Print the firmware update status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			status, err := dev.UpdateStatus(ctx)
			if err != nil {
				return err
			}
			return printJSON(status)
		})
	},
}

var settingsDeviceIDCmd = &cobra.Command{
	Use:   "device-id",
	Short: "Print the receiver unique identifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			id, err := dev.DeviceID(ctx)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var settingsKeyCmd = &cobra.Command{
	Use:   "key <key>",
	Short: "Send a key press to the receiver",
	Long: `key sends a DOM key event to the receiver, for example "Enter",
"ArrowUp" or a printable character.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.SendKeyEvent(ctx, ocast.KeyPressedParams{
				Key:  args[0],
				Code: args[0],
			})
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsUpdateStatusCmd)
	settingsCmd.AddCommand(settingsDeviceIDCmd)
	settingsCmd.AddCommand(settingsKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}
