// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"opentune/cmd"
	"opentune/internal/config"
	"opentune/internal/device"
	"opentune/internal/engine"
	"opentune/internal/graph"
	applog "opentune/internal/log"
	"opentune/internal/nodes"
	"opentune/internal/plugin"
	"opentune/internal/project"
	"opentune/internal/timeline"
	"opentune/internal/transport"
	"opentune/pkg/build"
)

// main runs in three phases:
//
// 1. Startup (cold path): build info, runtime tuning, PortAudio init,
//    argument parsing, one-off commands, project load.
//
// 2. Concurrent (hot path): the output stream callback renders the graph;
//    the metering publisher and the master recorder run on their own
//    goroutines, feeding off lock-free rings and atomics.
//
// 3. Shutdown (cold path): signal handling, recording flush, resource
//    cleanup.
func main() {
	build.Initialize()

	// One thread for the audio callback, one for everything else.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	pm := plugin.NewManager()
	if cfg.Plugins.ScanStandardPaths {
		pm.ScanStandardPaths()
	}
	for _, dir := range cfg.Plugins.ExtraPaths {
		pm.Scan(dir)
	}

	store, err := project.NewStore(cfg.Project.Dir)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	// One-off commands that never touch the audio device.
	switch cfg.Command {
	case "plugins":
		printPlugins(pm)
		return
	case "projects":
		printProjects(store)
		return
	}

	if err := device.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer device.Terminate()

	if cfg.Command == "list" {
		if err := device.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	eng := engine.New(cfg)

	if cfg.ProjectID != "" {
		proj, err := store.Open(cfg.ProjectID)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		if err := proj.Materialize(eng, pm); err != nil {
			applog.Fatalf("Failed to load project: %v", err)
		}
		applog.Infof("Loaded project %q (%s)", proj.Metadata.Name, proj.Metadata.ID)
	} else if err := defaultSession(eng, pm, cfg); err != nil {
		applog.Fatalf("Failed to build default session: %v", err)
	}

	if cfg.Command == "render" {
		if err := eng.RenderToWAV(cfg.RenderOutput, cfg.RenderSeconds); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// Start of the hot path: PortAudio begins invoking the callback.
	if err := eng.Start(); err != nil {
		applog.Fatalf("%v", err)
	}

	var publisher *engine.Publisher
	if cfg.Meter.Enabled {
		sink, err := transport.New(cfg.Meter.Transport, cfg.Meter.Addr)
		if err != nil {
			applog.Fatalf("%v", err)
		}
		defer sink.Close()
		publisher = engine.NewPublisher(eng, sink,
			time.Duration(cfg.Meter.IntervalMS)*time.Millisecond)
		publisher.Start()
	}

	if cfg.RecordMaster {
		if cfg.RecordOutput == "" {
			cfg.RecordOutput = "master-" +
				time.Now().UTC().Format("02-01-2006-150405") + ".wav"
		}
		if err := eng.StartMasterRecording(cfg.RecordOutput); err != nil {
			applog.Fatalf("%v", err)
		}
	}

	if err := eng.Play(); err != nil {
		applog.Errorf("Transport start failed: %v", err)
	}

	fmt.Printf("%s %s running, Ctrl+C to stop\n",
		build.GetFlags().Name, build.GetFlags().Version)

	<-done

	if publisher != nil {
		publisher.Stop()
	}
	if cfg.RecordMaster {
		if err := eng.StopMasterRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", cfg.RecordOutput)
		}
	}
	if err := eng.Close(); err != nil {
		applog.Errorf("Error closing engine: %v", err)
	}
}

// defaultSession builds a small looping arrangement so the engine makes
// sound out of the box: a sequenced clip driving an oscillator through a
// lowpass filter into the master mixer.
func defaultSession(eng *engine.Engine, pm *plugin.Manager, cfg *config.Config) error {
	beat := int64(cfg.Audio.SampleRate / 2) // quarter note at 120 BPM

	clip := nodes.NewNoteClip(pm.NextID(), 0, []nodes.Note{
		{Pos: 0, Length: beat - 1, Key: 60, Velocity: 100},
		{Pos: beat, Length: beat - 1, Key: 64, Velocity: 96},
		{Pos: 2 * beat, Length: beat - 1, Key: 67, Velocity: 96},
		{Pos: 3 * beat, Length: beat - 1, Key: 72, Velocity: 110},
	})
	osc := nodes.NewOscillator(pm.NextID(), 440)
	filter := nodes.NewFilter(pm.NextID(), 2400, cfg.Audio.SampleRate)
	master := nodes.NewMixer(pm.NextID(), 1)

	for _, n := range []graph.Node{clip, osc, filter, master} {
		if err := eng.AddNode(n); err != nil {
			return err
		}
	}
	steps := []struct {
		from, to graph.PortRef
	}{
		{graph.PortRef{Node: clip.ID(), Port: "notes"}, graph.PortRef{Node: osc.ID(), Port: "notes"}},
		{graph.PortRef{Node: osc.ID(), Port: "out"}, graph.PortRef{Node: filter.ID(), Port: "in"}},
		{graph.PortRef{Node: filter.ID(), Port: "out"}, graph.PortRef{Node: master.ID(), Port: "in0"}},
	}
	for _, s := range steps {
		if err := eng.Connect(s.from, s.to); err != nil {
			return err
		}
	}
	if err := eng.SetMaster(master.ID()); err != nil {
		return err
	}
	return eng.SetLoop(timeline.Loop{Enabled: true, Start: 0, End: 4 * beat})
}

func printPlugins(pm *plugin.Manager) {
	fmt.Printf("\nRegistered processors\n\n")
	for _, name := range pm.Registered() {
		fmt.Printf("  %s\n", name)
	}
	discovered := pm.Discovered()
	fmt.Printf("\nDiscovered plugins (%d)\n\n", len(discovered))
	for _, d := range discovered {
		fmt.Printf("  [%s] %s\n      %s\n", d.Format, d.Name, d.Path)
	}
	fmt.Println()
}

func printProjects(store *project.Store) {
	metas, err := store.List()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	fmt.Printf("\nProjects (%d)\n\n", len(metas))
	for _, m := range metas {
		fmt.Printf("  %s  %s\n      modified %s\n", m.ID, m.Name,
			m.Modified.Format(time.RFC3339))
	}
	fmt.Println()
}
