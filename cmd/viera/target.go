package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/discovery"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/remote"
)

// locationFor turns a host, host:port or URL into a description location
func locationFor(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return discovery.DefaultLocation(target)
}

// resolveTarget finds the device named by --device. A registry name wins,
// anything else is treated as an address. With no target the only
// registered device is used, then the only discovered one.
func resolveTarget(ctx context.Context, reg *config.Registry, target string) (*remote.Device, string, error) {
	if target != "" {
		device, err := reg.Device(target)
		if err == nil {
			return device, target, nil
		}
		if !errors.Is(err, config.ErrDeviceNotFound) {
			return nil, "", err
		}

		logging.Debug("Not a registered name, resolving as address", zap.String("target", target))
		scanner, err := reg.NewScanner()
		if err != nil {
			return nil, "", err
		}
		device, err = scanner.Resolve(ctx, locationFor(target))
		if err != nil {
			return nil, "", err
		}
		name, _ := reg.NameFor(device)
		return device, name, nil
	}

	if names := reg.DeviceNames(); len(names) == 1 {
		device, err := reg.Device(names[0])
		return device, names[0], err
	} else if len(names) > 1 {
		return nil, "", fmt.Errorf("%d devices are registered (%s); choose one with --device",
			len(names), strings.Join(names, ", "))
	}

	scanner, err := reg.NewScanner()
	if err != nil {
		return nil, "", err
	}
	devices, err := scanner.Discover(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, "", fmt.Errorf("no televisions found. Use --device to give an address")
	case 1:
		name, _ := reg.NameFor(devices[0])
		return devices[0], name, nil
	default:
		return nil, "", fmt.Errorf("found %d televisions. Use --device to choose one, or 'viera discover --save' to name them", len(devices))
	}
}

func displayName(name string, device *remote.Device) string {
	if name != "" {
		return name
	}
	if device.FriendlyName != "" {
		return device.FriendlyName
	}
	return device.Hostname
}
