package commands

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xpanvictor/goocast/internal/config"
	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/discovery"
	"github.com/xpanvictor/goocast/pkg/ocast"
)

const disconnectGrace = 5 * time.Second

// deviceWatcher resolves the first device matching the target selector.
type deviceWatcher struct {
	target string
	found  chan ocast.Device
}

func (w *deviceWatcher) OnDeviceAdded(d ocast.Device) {
	desc := d.UpnpDevice()
	if w.target != "" && w.target != desc.ID && w.target != desc.FriendlyName {
		return
	}
	select {
	case w.found <- d:
	default:
	}
}

func (w *deviceWatcher) OnDeviceRemoved(ocast.Device)             {}
func (w *deviceWatcher) OnDeviceChanged(ocast.Device)             {}
func (w *deviceWatcher) OnDeviceDisconnected(ocast.Device, error) {}
func (w *deviceWatcher) OnDiscoveryStopped(error)                 {}

// findDevice probes the network until the selected device shows up or the
// context ends. Discovery is paused once the device is in hand so probes
// stop while the session works.
func findDevice(ctx context.Context, logger *Logger.Logger, target string) (ocast.Device, *ocast.DeviceCenter, error) {
	disc := discovery.NewService(logger)
	center := ocast.NewDeviceCenter(disc, logger)
	if err := center.RegisterDevice(ocast.ReferenceDeviceType()); err != nil {
		return nil, nil, err
	}
	watcher := &deviceWatcher{target: target, found: make(chan ocast.Device, 1)}
	center.AddDeviceListener(watcher)
	if !center.ResumeDiscovery() {
		return nil, nil, fmt.Errorf("discovery failed to start")
	}
	select {
	case dev := <-watcher.found:
		center.PauseDiscovery()
		return dev, center, nil
	case <-ctx.Done():
		center.StopDiscovery()
		return nil, nil, fmt.Errorf("no matching device found: %w", ctx.Err())
	}
}

// runWithDevice is the shared skeleton of every device-bound command:
// discover, configure, connect, run the operation, disconnect.
func runWithDevice(fn func(ctx context.Context, center *ocast.DeviceCenter, dev ocast.Device) error) error {
	settings := loadSettings()
	logger := newLogger(settings)

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	dev, center, err := findDevice(ctx, logger, flagDevice)
	if err != nil {
		return err
	}
	defer center.StopDiscovery()

	configureDevice(dev, settings)
	if err := dev.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectGrace)
		defer dcancel()
		dev.Disconnect(dctx)
	}()

	desc := dev.UpnpDevice()
	fmt.Printf("connected to %s (%s)\n", desc.FriendlyName, desc.ID)
	return fn(ctx, center, dev)
}

func configureDevice(dev ocast.Device, settings *config.Settings) {
	appName := flagApp
	if appName == "" {
		appName = settings.Device.Application
	}
	if appName != "" {
		dev.SetApplicationName(appName)
	}
	if flagInsecure || settings.Device.Insecure {
		dev.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
}

// printJSON renders command results for the terminal.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
