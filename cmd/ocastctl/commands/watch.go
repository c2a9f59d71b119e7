package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/pkg/ocast"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream receiver events to the terminal",
	Long: `watch connects to a receiver and prints every playback, metadata,
update and custom event it emits until the timeout elapses or the
process is interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithDevice(func(ctx context.Context, center *ocast.DeviceCenter, dev ocast.Device) error {
			printer := &eventPrinter{}
			center.AddEventListener(printer)
			center.AddDeviceListener(printer)
			defer center.RemoveEventListener(printer)
			defer center.RemoveDeviceListener(printer)

			if dev.ApplicationName() != "" {
				if err := dev.StartApplication(ctx); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		})
	},
}

// eventPrinter narrates the event stream one line per event.
type eventPrinter struct{}

func (p *eventPrinter) OnPlaybackStatus(d ocast.Device, status ocast.PlaybackStatus) {
	fmt.Printf("[%s] playback %s position=%.1f/%.1f volume=%.2f mute=%t\n",
		d.UpnpDevice().FriendlyName, status.State, status.Position, status.Duration, status.Volume, status.Mute)
}

func (p *eventPrinter) OnMetadataChanged(d ocast.Device, metadata ocast.Metadata) {
	fmt.Printf("[%s] metadata %q (%s)\n", d.UpnpDevice().FriendlyName, metadata.Title, metadata.MediaType)
}

func (p *eventPrinter) OnUpdateStatus(d ocast.Device, status ocast.UpdateStatus) {
	fmt.Printf("[%s] update %s version=%s progress=%d%%\n",
		d.UpnpDevice().FriendlyName, status.State, status.Version, status.Progress)
}

func (p *eventPrinter) OnCustomEvent(d ocast.Device, service, name string, params json.RawMessage) {
	fmt.Printf("[%s] event %s/%s %s\n", d.UpnpDevice().FriendlyName, service, name, string(params))
}

func (p *eventPrinter) OnDeviceAdded(ocast.Device)   {}
func (p *eventPrinter) OnDeviceRemoved(ocast.Device) {}
func (p *eventPrinter) OnDeviceChanged(ocast.Device) {}

func (p *eventPrinter) OnDeviceDisconnected(d ocast.Device, err error) {
	fmt.Printf("[%s] disconnected: %v\n", d.UpnpDevice().FriendlyName, err)
}

func (p *eventPrinter) OnDiscoveryStopped(err error) {
	if err != nil {
		fmt.Printf("discovery stopped: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
