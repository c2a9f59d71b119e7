package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xpanvictor/goocast/pkg/discovery"
	"github.com/xpanvictor/goocast/pkg/ocast"
)

var flagInterval time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search the network for OCast receivers",
	Long: `discover probes the network over SSDP and prints devices as they
appear, change or drop out, until the timeout elapses or the command is
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := loadSettings()
		logger := newLogger(settings)

		disc := discovery.NewService(logger)
		center := ocast.NewDeviceCenter(disc, logger)
		if err := center.RegisterDevice(ocast.ReferenceDeviceType()); err != nil {
			return err
		}
		interval := flagInterval
		if interval == 0 {
			interval = settings.Discovery.Interval()
		}
		center.SetDiscoveryInterval(interval)
		center.AddDeviceListener(&printListener{})
		if !center.ResumeDiscovery() {
			return fmt.Errorf("discovery failed to start")
		}
		defer center.StopDiscovery()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		select {
		case <-ctx.Done():
		case <-time.After(flagTimeout):
		}

		devices := center.Devices()
		fmt.Printf("\n%d device(s) live\n", len(devices))
		for _, dev := range devices {
			desc := dev.UpnpDevice()
			fmt.Printf("  %s  %-24s %s (%s)\n", desc.ID, desc.FriendlyName, desc.ModelName, desc.Manufacturer)
		}
		if len(devices) == 0 {
			return fmt.Errorf("no devices found")
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&flagInterval, "interval", 0, "probe interval (min 5s)")
	rootCmd.AddCommand(discoverCmd)
}

// printListener narrates device lifecycle notifications.
type printListener struct{}

func (printListener) OnDeviceAdded(d ocast.Device) {
	desc := d.UpnpDevice()
	fmt.Printf("+ %s  %s (%s)\n", desc.ID, desc.FriendlyName, desc.ModelName)
}

func (printListener) OnDeviceRemoved(d ocast.Device) {
	desc := d.UpnpDevice()
	fmt.Printf("- %s  %s\n", desc.ID, desc.FriendlyName)
}

func (printListener) OnDeviceChanged(d ocast.Device) {
	desc := d.UpnpDevice()
	fmt.Printf("~ %s  %s (%s)\n", desc.ID, desc.FriendlyName, desc.ModelName)
}

func (printListener) OnDeviceDisconnected(d ocast.Device, err error) {
	desc := d.UpnpDevice()
	fmt.Printf("! %s  channel lost: %v\n", desc.ID, err)
}

func (printListener) OnDiscoveryStopped(err error) {
	if err != nil {
		fmt.Printf("discovery stopped: %v\n", err)
	}
}
