// SPDX-License-Identifier: MIT
/*
Package plugin hosts third-party and built-in processors as graph nodes.

The crossing point is the Processor capability set {Describe, Configure,
Process, Unload}: one adapter per plugin format implements it, and the
Adapter node isolates the engine from whatever happens behind it. A
processor that fails is silenced and marked faulted, a processor that
overruns its time budget is truncated to silence for that block. Plugin
binary formats and their SDKs stay outside this package; discovered external
plugins are cataloged but loading them reports an unsupported-format
LoadError until a format adapter exists for them.
*/
package plugin

import "fmt"

// Format tags where a processor comes from. New formats add a variant and a
// loader, never a hierarchy edit.
type Format int

const (
	FormatInternal Format = iota
	FormatVST3
	FormatCLAP
	FormatLV2
)

func (f Format) String() string {
	switch f {
	case FormatInternal:
		return "internal"
	case FormatVST3:
		return "vst3"
	case FormatCLAP:
		return "clap"
	case FormatLV2:
		return "lv2"
	default:
		return "unknown"
	}
}

// Descriptor identifies a loadable processor.
type Descriptor struct {
	Name    string
	Path    string // empty for internal processors
	Format  Format
	Inputs  int // audio input port count
	Outputs int // audio output port count
}

// LoadError reports that a plugin could not be loaded. The graph edit that
// requested the load is rejected; the prior graph stays valid.
type LoadError struct {
	Name   string
	Format Format
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load plugin %q (%s): %s", e.Name, e.Format, e.Reason)
}
