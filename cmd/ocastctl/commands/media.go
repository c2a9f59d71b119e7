package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/pkg/ocast"
)

var (
	flagMediaURL      string
	flagMediaTitle    string
	flagMediaSubtitle string
	flagMediaLogo     string
	flagMediaType     string
	flagMediaTransfer string
	flagMediaNoAuto   bool
	flagMediaPosition float64
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Control media playback on a receiver",
}

var mediaPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Load a media URL into the receiver player",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			params := ocast.PrepareParams{
				URL:       flagMediaURL,
				Title:     flagMediaTitle,
				Subtitle:  flagMediaSubtitle,
				Logo:      flagMediaLogo,
				MediaType: flagMediaType,
				Transfer:  flagMediaTransfer,
				AutoPlay:  !flagMediaNoAuto,
				Position:  flagMediaPosition,
			}
			if err := dev.PrepareMedia(ctx, params); err != nil {
				return err
			}
			fmt.Printf("prepared %s\n", params.URL)
			return nil
		})
	},
}

var mediaPlayCmd = &cobra.Command{
	Use:   "play",
	Short: "Start playback of the prepared media",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.PlayMedia(ctx, flagMediaPosition)
		})
	},
}

var mediaPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.PauseMedia(ctx)
		})
	},
}

var mediaResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume paused playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.ResumeMedia(ctx)
		})
	},
}

var mediaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback and release the media",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.StopMedia(ctx)
		})
	},
}

var mediaSeekCmd = &cobra.Command{
	Use:   "seek <seconds>",
	Short: "Seek to a position in seconds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[0], err)
		}
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.SeekMedia(ctx, position)
		})
	},
}

var mediaVolumeCmd = &cobra.Command{
	Use:   "volume <level>",
	Short: "Set the volume, 0.0 through 1.0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q: %w", args[0], err)
		}
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.SetVolume(ctx, volume)
		})
	},
}

var mediaMuteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Mute the receiver audio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.SetMute(ctx, true)
		})
	},
}

var mediaUnmuteCmd = &cobra.Command{
	Use:   "unmute",
	Short: "Unmute the receiver audio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			return dev.SetMute(ctx, false)
		})
	},
}

var mediaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current playback status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			status, err := dev.PlaybackStatus(ctx)
			if err != nil {
				return err
			}
			return printJSON(status)
		})
	},
}

var mediaMetadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the current media metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, _ *ocast.DeviceCenter, dev ocast.Device) error {
			metadata, err := dev.Metadata(ctx)
			if err != nil {
				return err
			}
			return printJSON(metadata)
		})
	},
}

func init() {
	mediaPrepareCmd.Flags().StringVar(&flagMediaURL, "url", "", "media URL to load")
	mediaPrepareCmd.Flags().StringVar(&flagMediaTitle, "title", "", "media title")
	mediaPrepareCmd.Flags().StringVar(&flagMediaSubtitle, "subtitle", "", "media subtitle")
	mediaPrepareCmd.Flags().StringVar(&flagMediaLogo, "logo", "", "media logo URL")
	mediaPrepareCmd.Flags().StringVar(&flagMediaType, "type", ocast.MediaTypeVideo, "media type (audio, video, image)")
	mediaPrepareCmd.Flags().StringVar(&flagMediaTransfer, "transfer", ocast.TransferModeBuffered, "transfer mode (buffered, streamed)")
	mediaPrepareCmd.Flags().BoolVar(&flagMediaNoAuto, "no-autoplay", false, "load without starting playback")
	mediaPrepareCmd.Flags().Float64Var(&flagMediaPosition, "position", 0, "start position in seconds")
	_ = mediaPrepareCmd.MarkFlagRequired("url")

	mediaPlayCmd.Flags().Float64Var(&flagMediaPosition, "position", 0, "start position in seconds")

	mediaCmd.AddCommand(mediaPrepareCmd)
	mediaCmd.AddCommand(mediaPlayCmd)
	mediaCmd.AddCommand(mediaPauseCmd)
	mediaCmd.AddCommand(mediaResumeCmd)
	mediaCmd.AddCommand(mediaStopCmd)
	mediaCmd.AddCommand(mediaSeekCmd)
	mediaCmd.AddCommand(mediaVolumeCmd)
	mediaCmd.AddCommand(mediaMuteCmd)
	mediaCmd.AddCommand(mediaUnmuteCmd)
	mediaCmd.AddCommand(mediaStatusCmd)
	mediaCmd.AddCommand(mediaMetadataCmd)
	rootCmd.AddCommand(mediaCmd)
}
