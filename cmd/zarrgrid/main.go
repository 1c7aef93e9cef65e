// zarrgrid loads chunked volumes from Zarr or N5 hierarchies as rectilinear grids

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	zarr "github.com/qri-io/zarr-grid"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	configFile  = flag.String("config", "", "")
	anonymous   = flag.Bool("anon", true, "")
	concurrency = flag.Int("concurrency", 0, "")
	timeout     = flag.Duration("timeout", 0, "")
	verbose     = flag.Bool("verbose", false, "")

	listGroups = flag.Bool("groups", false, "")
	listLeaves = flag.Bool("leaves", false, "")
)

const helpMessage = `
zarrgrid reads a chunked 3d array from a Zarr or N5 hierarchy and turns it
into a rectilinear grid.

Usage: zarrgrid [options] <command>

  grid <location> <array path> [out.vtk]
        Fetches the array and prints the grid. Writes a legacy VTK file when
        an output file is given.

        Example: zarrgrid grid s3://janelia-cosem-datasets/jrc_hela-2/jrc_hela-2.n5 em/fibsem-uint16/s4 hela.vtk

  ls <location> [group path]
        Lists arrays below the group, or groups with -groups, or leaf groups
        with -leaves.

  Locations are s3://bucket/prefix, gs://bucket/prefix, file://path or a
  local path.

  -config     (string)   TOML configuration file
  -anon       (flag)     Read buckets without credentials (default true)
  -concurrency (int)     Maximum parallel chunk fetches
  -timeout    (duration) Per chunk fetch timeout, e.g. 30s
  -groups     (flag)     ls: list all groups
  -leaves     (flag)     ls: list leaf groups
  -verbose    (flag)     Debug logging
  -h, -help   (flag)     Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || flag.NArg() < 2 {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile, flag.Visit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := cfg.Logging.SetLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer zarr.Shutdown()
	if *verbose {
		zarr.SetLogMode(zarr.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := flag.Args()
	switch args[0] {
	case "grid":
		err = runGrid(ctx, cfg, args[1:])
	case "ls":
		err = runList(ctx, os.Stdout, cfg, args[1:])
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		zarr.Shutdown()
		os.Exit(1)
	}
}

// loadConfig applies the flags visit reports as set over the config file
// or defaults
func loadConfig(filename string, visit func(func(*flag.Flag))) (*zarr.Config, error) {
	cfg := zarr.DefaultConfig()
	if filename != "" {
		var err error
		if cfg, err = zarr.LoadConfig(filename); err != nil {
			return nil, err
		}
	}
	visit(func(f *flag.Flag) {
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch v := g.Get().(type) {
		case bool:
			if f.Name == "anon" {
				cfg.Store.Anonymous = v
			}
		case int:
			if f.Name == "concurrency" {
				cfg.Fetch.Concurrency = v
			}
		case time.Duration:
			if f.Name == "timeout" {
				cfg.Fetch.ChunkTimeout.Duration = v
			}
		}
	})
	return cfg, cfg.Validate()
}

func runGrid(ctx context.Context, cfg *zarr.Config, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("grid needs <location> <array path> [out.vtk]")
	}
	src := zarr.NewSource(cfg)
	src.SetDataURL(args[0])
	src.SetGroup(args[1])

	start := time.Now()
	g := &zarr.RectilinearGrid{}
	if err := src.Update(ctx, g); err != nil {
		return err
	}
	printGrid(g, time.Since(start))

	if len(args) == 3 {
		f, err := os.Create(args[2])
		if err != nil {
			return err
		}
		if err := zarr.WriteVTK(f, g, args[0]+" "+args[1]); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[2])
	}
	return nil
}

func printGrid(g *zarr.RectilinearGrid, elapsed time.Duration) {
	fmt.Printf("dimensions: %d x %d x %d (%d points) in %s\n",
		g.Dimensions[0], g.Dimensions[1], g.Dimensions[2], g.NumPoints(), elapsed)
	for _, axis := range []struct {
		name   string
		coords []float64
	}{
		{"x", g.XCoordinates},
		{"y", g.YCoordinates},
		{"z", g.ZCoordinates},
	} {
		if len(axis.coords) == 0 {
			continue
		}
		fmt.Printf("%s: %d coordinates, %g .. %g\n", axis.name, len(axis.coords), axis.coords[0], axis.coords[len(axis.coords)-1])
	}
	for _, f := range g.PointData {
		fmt.Printf("field %q: %d %s values\n", f.Name, f.Len(), f.Dtype)
	}
}

func runList(ctx context.Context, w io.Writer, cfg *zarr.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("ls needs <location> [group path]")
	}
	store, err := zarr.OpenStore(ctx, args[0], cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer zarr.CloseStore(store)

	h, err := zarr.OpenHierarchy(ctx, store)
	if err != nil {
		return err
	}
	g := h.Root()
	if len(args) == 2 {
		p, err := zarr.NewPath(args[1])
		if err != nil {
			return err
		}
		n, err := h.Get(ctx, p)
		if err != nil {
			return err
		}
		var ok bool
		if g, ok = n.(*zarr.Group); !ok {
			return describeArray(w, n.(*zarr.Array))
		}
	}

	var paths []string
	switch {
	case *listLeaves:
		paths, err = zarr.LeafGroupPaths(ctx, g)
	case *listGroups:
		paths, err = zarr.GroupPaths(ctx, g)
	default:
		paths, err = zarr.ArrayPaths(ctx, g)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s hierarchy, %d entries\n", h.Format(), len(paths))
	for _, p := range paths {
		if p == "" {
			p = "/"
		}
		fmt.Fprintln(w, p)
	}
	return nil
}

// describeArray prints the array summary and its attributes by name
func describeArray(w io.Writer, arr *zarr.Array) error {
	fmt.Fprintln(w, arr.Info())
	attrs := arr.Attrs()
	for _, k := range attrs.Keys() {
		v, err := json.Marshal(attrs[k])
		if err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
		fmt.Fprintf(w, "  %s: %s\n", k, v)
	}
	return nil
}
