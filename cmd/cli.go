// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"opentune/internal/config"
	"opentune/pkg/build"
)

// ParseArgs builds the runtime configuration from the config file, the
// environment and the command line, in that order. A subcommand sets
// cfg.Command; an empty command runs the engine.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetFlags()

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	pluginsCmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered and discovered plugins",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "plugins"
		},
	}
	rootCmd.AddCommand(pluginsCmd)

	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "List stored projects",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "projects"
		},
	}
	rootCmd.AddCommand(projectsCmd)

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render the loaded project offline to a WAV file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "render"
		},
	}
	renderCmd.Flags().Float64Var(&cfg.RenderSeconds, "seconds", 10,
		"Duration to render, in seconds")
	rootCmd.AddCommand(renderCmd)

	// Audio device configuration.
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.DeviceID, "device", "d", cfg.Audio.DeviceID,
		"Output device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.Channels, "channels", "c", cfg.Audio.Channels,
		"Master output channels (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&cfg.Audio.SampleRate, "sample-rate", "s", cfg.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.BlockSize, "block-size", "b", cfg.Audio.BlockSize,
		"Frames per block, power of 2 (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Audio.LowLatency, "low-latency", "l", cfg.Audio.LowLatency,
		"Request low latency from the output device")

	// Project selection.
	rootCmd.PersistentFlags().StringVarP(&cfg.ProjectID, "project", "p", cfg.ProjectID,
		"Project ID to open at startup")

	// Master recording.
	rootCmd.PersistentFlags().BoolVarP(&cfg.RecordMaster, "record", "r", false,
		"Record the master output while running")
	rootCmd.PersistentFlags().StringVarP(&cfg.RecordOutput, "output", "o", "",
		"Output WAV file, for --record or the render command")

	// Metering feed.
	rootCmd.PersistentFlags().BoolVar(&cfg.Meter.Enabled, "meter", cfg.Meter.Enabled,
		"Serve the websocket metering/status feed")
	rootCmd.PersistentFlags().StringVar(&cfg.Meter.Addr, "meter-addr", cfg.Meter.Addr,
		"Metering feed listen address (websocket) or target (udp)")
	rootCmd.PersistentFlags().StringVar(&cfg.Meter.Transport, "meter-transport", cfg.Meter.Transport,
		"Metering feed transport: websocket, udp or log")

	// Debug configuration.
	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "verbose", "v", cfg.Debug,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	// The shared --output flag doubles as the render target.
	if cfg.Command == "render" {
		cfg.RenderOutput = cfg.RecordOutput
		if cfg.RenderOutput == "" {
			cfg.RenderOutput = "render.wav"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
