// Command entwine is the scan/build/merge CLI. Grounded on main.go's
// subcommand switch, printLogo/showHelp banners, and glog.Fatal-on-fatal
// validation error convention.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/ecopia-map/entwine_go/internal/builder"
	"github.com/ecopia-map/entwine_go/internal/cliopts"
	"github.com/ecopia-map/entwine_go/internal/reader/plyreader"
	"github.com/ecopia-map/entwine_go/internal/reproj/proj4reproj"
	"github.com/ecopia-map/entwine_go/internal/schema"
	"github.com/ecopia-map/entwine_go/internal/storageendpoint"
	"github.com/ecopia-map/entwine_go/internal/structure"
	"github.com/ecopia-map/entwine_go/internal/xlog"
)

const version = "0.1.0"

const logo = `
                   _         _
   ___  _ __  _ __(_)_ __   ___
  / _ \| '_ \| '__| | '_ \ / _ \
 |  __/| | | | |  | | | | |  __/
  \___||_| |_|_|  |_|_| |_|\___|
  concurrent point cloud spatial index, YYYY
`

func main() {
	glob := cliopts.ParseGlobal()
	args := flag.Args()
	if *glob.Help || len(args) == 0 {
		showHelp()
		return
	}
	if *glob.Version {
		printVersion()
		return
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case cliopts.CommandBuild:
		mainBuild(rest)
	case cliopts.CommandMerge:
		mainMerge(rest)
	case cliopts.CommandScan:
		mainScan(rest)
	default:
		glog.Fatalf("unrecognized command %q, must be one of [build|merge|scan]", cmd)
	}
}

// scanConfig is the JSON document scan writes and build optionally reads
// back via -config.
type scanConfig struct {
	Input string  `json:"input"`
	Srs   string  `json:"srs"`
	MinX  float64 `json:"minX"`
	MinY  float64 `json:"minY"`
	MinZ  float64 `json:"minZ"`
	MaxX  float64 `json:"maxX"`
	MaxY  float64 `json:"maxY"`
	MaxZ  float64 `json:"maxZ"`
	Is3d  bool    `json:"is3d"`
}

func mainScan(args []string) {
	flags := cliopts.ParseScanFlags(args)
	if *flags.Input == "" {
		glog.Fatal("scan: -input is required")
	}

	r := plyreader.New()
	res, ok, err := r.Preview(*flags.Input)
	if err != nil {
		glog.Fatalf("scan: reading header: %v", err)
	}
	if !ok {
		glog.Fatal("scan: reader could not open input, no points found")
	}

	cfg := scanConfig{
		Input: *flags.Input,
		Srs:   *flags.Srs,
		MinX:  res.Bounds.Min.X,
		MinY:  res.Bounds.Min.Y,
		MinZ:  res.Bounds.Min.Z,
		MaxX:  res.Bounds.Max.X,
		MaxY:  res.Bounds.Max.Y,
		MaxZ:  res.Bounds.Max.Z,
		Is3d:  res.Bounds.Is3d,
	}
	blob, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		glog.Fatalf("scan: encoding config: %v", err)
	}
	if err := os.WriteFile(*flags.Output, blob, 0644); err != nil {
		glog.Fatalf("scan: writing %s: %v", *flags.Output, err)
	}
	xlog.Outputf("scan complete, wrote %s (%d points previewed)", *flags.Output, res.NumPoints)
}

func mainBuild(args []string) {
	flags := cliopts.ParseBuildFlags(args)

	if *flags.Silent {
		xlog.Disable()
	} else {
		printLogo()
	}
	if !*flags.Timestamp {
		xlog.DisableTimestamp()
	}

	input := *flags.Input
	srs := *flags.Srs
	if *flags.Config != "" {
		blob, err := os.ReadFile(*flags.Config)
		if err != nil {
			glog.Fatalf("build: reading config: %v", err)
		}
		var cfg scanConfig
		if err := json.Unmarshal(blob, &cfg); err != nil {
			glog.Fatalf("build: parsing config: %v", err)
		}
		if input == "" {
			input = cfg.Input
		}
		if srs == "" {
			srs = cfg.Srs
		}
	}
	if input == "" {
		glog.Fatal("build: -input is required")
	}
	if *flags.Output == "" {
		glog.Fatal("build: -output is required")
	}

	out, err := storageendpoint.NewLocal(*flags.Output)
	if err != nil {
		glog.Fatalf("build: %v", err)
	}
	var tmp storageendpoint.Endpoint
	if *flags.Tmp != "" {
		tmpEndpoint, err := storageendpoint.NewLocal(*flags.Tmp)
		if err != nil {
			glog.Fatalf("build: %v", err)
		}
		tmp = tmpEndpoint
	}

	st := structure.Structure{
		BaseDepthBegin: 0,
		BaseDepthEnd:   6,
		ColdDepthBegin: 6,
		ColdDepthEnd:   32,
		Is3d:           true,
		ChunkPoints:    *flags.ChunkPoints,
	}
	if id, of, err := cliopts.ParseSubset(*flags.Subset); err != nil {
		glog.Fatalf("build: %v", err)
	} else if of > 0 {
		st.Subset = &structure.Subset{Id: id, Of: of}
	}

	sc := schema.New([]schema.Dimension{
		{Name: "X", Type: schema.Float64},
		{Name: "Y", Type: schema.Float64},
		{Name: "Z", Type: schema.Float64},
		{Name: "Intensity", Type: schema.Uint16},
		{Name: "Classification", Type: schema.Uint8},
		{Name: "Red", Type: schema.Uint16},
		{Name: "Green", Type: schema.Uint16},
		{Name: "Blue", Type: schema.Uint16},
	})

	opts := builder.Options{
		Output:         out,
		Tmp:            tmp,
		Reader:         plyreader.New(),
		Schema:         sc,
		Structure:      st,
		TrustHeaders:   *flags.TrustHeaders,
		Compressed:     *flags.Compressed,
		TotalThreads:   *flags.Threads,
		SingleThreaded: *flags.SingleThreaded,
	}

	if *flags.DstSrs != "" && srs != "" {
		rp, err := proj4reproj.New(srs, *flags.DstSrs)
		if err != nil {
			glog.Fatalf("build: setting up reprojection: %v", err)
		}
		opts.Reprojection = rp.Reproject
	}

	b, err := builder.New(opts)
	if err != nil {
		glog.Fatalf("build: %v", err)
	}

	if !b.Insert(input) {
		glog.Fatalf("build: could not insert %s", input)
	}
	if err := b.Join(); err != nil {
		glog.Fatalf("build: %v", err)
	}
	if err := b.Save(); err != nil {
		glog.Fatalf("build: save: %v", err)
	}

	snap := b.Stats()
	xlog.Outputf("build complete: %d points, %d out of bounds, %d fell through", snap.NumPoints, snap.NumOutOfBounds, snap.NumFallThrough)
}

func mainMerge(args []string) {
	flags := cliopts.ParseMergeFlags(args)
	if *flags.Silent {
		xlog.Disable()
	}
	if !*flags.Timestamp {
		xlog.DisableTimestamp()
	}
	if *flags.Output == "" {
		glog.Fatal("merge: -output is required")
	}

	out, err := storageendpoint.NewLocal(*flags.Output)
	if err != nil {
		glog.Fatalf("merge: %v", err)
	}
	shards := countShards(*flags.Output)
	if shards == 0 {
		glog.Fatal("merge: no entwine-{i} shards found at output path")
	}

	b, err := builder.New(builder.Options{Output: out})
	if err != nil {
		glog.Fatalf("merge: %v", err)
	}
	if err := b.Merge(shards); err != nil {
		glog.Fatalf("merge: %v", err)
	}
	xlog.Outputf("merge complete: combined %d shards", shards)
}

// countShards probes for entwine-0, entwine-1, ... until one is missing.
func countShards(root string) int {
	n := 0
	for {
		if _, err := os.Stat(fmt.Sprintf("%s/entwine-%d", root, n)); err != nil {
			break
		}
		n++
	}
	return n
}

func printLogo() {
	fmt.Println(strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}

func showHelp() {
	printLogo()
	fmt.Println("entwine_go builds a concurrent chunked point cloud spatial index from point cloud input files.")
	printVersion()
	fmt.Println("")
	fmt.Println("Usage: entwine <build|merge|scan> [flags]")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + version)
}
