// Package cliopts parses flags for the build/merge/scan subcommands.
// Grounded on tools/flags.go's FlagsGlobal/TilerFlags split and the
// name/shorthand/usage defineXxxFlagCommand helper pattern.
package cliopts

import (
	"flag"
	"fmt"
)

const (
	CommandBuild = "build"
	CommandMerge = "merge"
	CommandScan  = "scan"
)

// Global holds the top-level -h/-v flags, parsed before the subcommand is
// dispatched.
type Global struct {
	Help    *bool
	Version *bool
}

// BuildFlags configures the `build` subcommand.
type BuildFlags struct {
	Config         *string
	Input          *string
	Output         *string
	Tmp            *string
	Srs            *string
	DstSrs         *string
	ChunkPoints    *uint64
	Threads        *int
	SingleThreaded *bool
	Compressed     *bool
	TrustHeaders   *bool
	Subset         *string // "i/N", e.g. "0/4"
	Silent         *bool
	Timestamp      *bool
}

// MergeFlags configures the `merge` subcommand: it needs only the shared
// output path where every `entwine-{i}` shard and the unified `entwine`
// live.
type MergeFlags struct {
	Output    *string
	Silent    *bool
	Timestamp *bool
}

// ScanFlags configures the `scan` subcommand, which previews the input's
// header for its bounds and writes them, with the -srs value, to a build
// config without ingesting any points.
type ScanFlags struct {
	Input  *string
	Output *string
	Srs    *string
}

func ParseGlobal() Global {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	version := defineBoolFlag("version", "v", false, "Displays the version of entwine_go.")
	flag.Parse()
	return Global{Help: help, Version: version}
}

func ParseBuildFlags(args []string) BuildFlags {
	fc := flag.NewFlagSet(CommandBuild, flag.ExitOnError)

	config := defineStringFlagCommand(fc, "config", "c", "", "Path to a scan-produced build config.json; supplies input and srs when -input/-srs are not set.")
	input := defineStringFlagCommand(fc, "input", "i", "", "Specifies the input file/folder.")
	output := defineStringFlagCommand(fc, "output", "o", "", "Specifies the output endpoint (local path or http(s) URL).")
	tmp := defineStringFlagCommand(fc, "tmp", "", "", "Local staging directory for remote input downloads. Must be a local path.")
	srs := defineStringFlagCommand(fc, "srs", "e", "", "Source spatial reference of input points, as a PROJ.4 definition string.")
	dstSrs := defineStringFlagCommand(fc, "dst-srs", "", "", "Destination spatial reference; enables reprojection when set.")
	chunkPoints := defineUint64FlagCommand(fc, "chunk-points", "", 1<<20, "Fixed capacity of a cold chunk, in points.")
	threads := defineIntFlagCommand(fc, "threads", "t", 8, "Total worker threads, split between the ingest pool and the clip pool.")
	singleThreaded := defineBoolFlagCommand(fc, "single-threaded", "", false, "Use the single-thread clipper cadence instead of the multi-thread one.")
	compressed := defineBoolFlagCommand(fc, "compressed", "", true, "Compress serialized cold chunks.")
	trustHeaders := defineBoolFlagCommand(fc, "trust-headers", "", false, "Trust the first input file's header for bounds and srs instead of a full pre-scan.")
	subset := defineStringFlagCommand(fc, "subset", "", "", "Subset build descriptor \"i/N\" for the subset-merge protocol.")
	silent := defineBoolFlagCommand(fc, "silent", "s", false, "Suppress all non-error messages.")
	timestamp := defineBoolFlagCommand(fc, "timestamp", "", true, "Adds a timestamp to log messages.")

	fc.Parse(args)

	return BuildFlags{
		Config:         config,
		Input:          input,
		Output:         output,
		Tmp:            tmp,
		Srs:            srs,
		DstSrs:         dstSrs,
		ChunkPoints:    chunkPoints,
		Threads:        threads,
		SingleThreaded: singleThreaded,
		Compressed:     compressed,
		TrustHeaders:   trustHeaders,
		Subset:         subset,
		Silent:         silent,
		Timestamp:      timestamp,
	}
}

func ParseMergeFlags(args []string) MergeFlags {
	fc := flag.NewFlagSet(CommandMerge, flag.ExitOnError)
	output := defineStringFlagCommand(fc, "output", "o", "", "Output endpoint holding the entwine-{i} shards to merge.")
	silent := defineBoolFlagCommand(fc, "silent", "s", false, "Suppress all non-error messages.")
	timestamp := defineBoolFlagCommand(fc, "timestamp", "", true, "Adds a timestamp to log messages.")
	fc.Parse(args)
	return MergeFlags{Output: output, Silent: silent, Timestamp: timestamp}
}

func ParseScanFlags(args []string) ScanFlags {
	fc := flag.NewFlagSet(CommandScan, flag.ExitOnError)
	input := defineStringFlagCommand(fc, "input", "i", "", "Specifies the input file/folder to scan.")
	output := defineStringFlagCommand(fc, "output", "o", "config.json", "Path to write the inferred build config.")
	srs := defineStringFlagCommand(fc, "srs", "e", "", "Source spatial reference, as a PROJ.4 definition string.")
	fc.Parse(args)
	return ScanFlags{Input: input, Output: output, Srs: srs}
}

// ParseSubset parses an "i/N" subset descriptor.
func ParseSubset(s string) (id, of uint64, err error) {
	if s == "" {
		return 0, 0, nil
	}
	if _, err := fmt.Sscanf(s, "%d/%d", &id, &of); err != nil {
		return 0, 0, fmt.Errorf("cliopts: invalid subset %q, want \"i/N\": %w", s, err)
	}
	if of == 0 || id >= of {
		return 0, 0, fmt.Errorf("cliopts: invalid subset %q, want 0 <= i < N", s)
	}
	return id, of, nil
}

func defineBoolFlag(name, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(fc *flag.FlagSet, name, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	fc.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		fc.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(fc *flag.FlagSet, name, shortHand, defaultValue, usage string) *string {
	var output string
	fc.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		fc.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineIntFlagCommand(fc *flag.FlagSet, name, shortHand string, defaultValue int, usage string) *int {
	var output int
	fc.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		fc.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineUint64FlagCommand(fc *flag.FlagSet, name, shortHand string, defaultValue uint64, usage string) *uint64 {
	var output uint64
	fc.Uint64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		fc.Uint64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
