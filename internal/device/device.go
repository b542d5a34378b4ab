// SPDX-License-Identifier: MIT
// Package device wraps the PortAudio subsystem: lifecycle, device
// enumeration and output device selection. Everything here is cold-path;
// the stream callback itself lives in the engine.
package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"opentune/internal/config"
)

// Initialize sets up the PortAudio subsystem. Must be called before any
// audio operation and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// OutputDevice retrieves the audio output device for the given ID.
// config.MinDeviceID (-1) selects the system default output device.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default output device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// ListDevices prints every available audio device with its capabilities.
func ListDevices() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")

	for i, device := range devices {
		deviceType := ""
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			deviceType = "Input/Output"
		case device.MaxInputChannels > 0:
			deviceType = "Input"
		case device.MaxOutputChannels > 0:
			deviceType = "Output"
		}

		fmt.Printf("[%d] %s (%s)\n", i, device.Name, deviceType)
		fmt.Printf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Printf("    Latency: Low=%.2fms, High=%.2fms\n",
			device.DefaultLowOutputLatency.Seconds()*1000,
			device.DefaultHighOutputLatency.Seconds()*1000)
		fmt.Println()
	}

	return nil
}
