package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kwv/tagmap/fuse"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile  = flag.String("config", "config.yaml", "Path to configuration file")
	mapFile     = flag.String("map", "", "Map XML file (overrides config)")
	heightsFile = flag.String("heights", "", "Height table XML file (overrides config)")
	renderOnly  = flag.Bool("render", false, "Render the loaded map and exit")
	replayOnly  = flag.Bool("replay", false, "Replay recorded frame files and exit")
	dataDir     = flag.String("data-dir", ".", "Directory containing recorded frames for --replay")
	outputFile  = flag.String("output", "tag-map", "Output base name for --render mode")
	format      = flag.String("format", "svg", "Render format: svg, png, or both")
	serviceMode = flag.Bool("service", false, "Run MQTT service mode for live map fusion")
	httpMode    = flag.Bool("http", false, "Enable HTTP server for serving the map")
	httpPort    = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
	gridSpacing = flag.Float64("grid-spacing", 0, "Grid line spacing in floor units (0 = config value)")
	resolution  = flag.Float64("resolution", 0, "PNG render DPI (0 = config value)")
)

func main() {
	flag.Parse()
	fmt.Printf("tagmap version: %s\n", Version)

	config, err := fuse.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	app := NewApp(config)
	app.ApplyOptions(AppOptions{
		MapFile:     *mapFile,
		HeightsFile: *heightsFile,
		GridSpacing: *gridSpacing,
		Resolution:  *resolution,
	})

	if err := app.LoadData(); err != nil {
		log.Fatalf("Error loading data: %v", err)
	}

	switch {
	case *renderOnly:
		if err := app.RunRender(*format, *outputFile); err != nil {
			log.Fatalf("Render failed: %v", err)
		}
	case *replayOnly:
		if err := app.RunReplay(*dataDir); err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
	case *serviceMode:
		if err := app.RunService(*httpMode, *httpPort); err != nil {
			log.Fatalf("Service failed: %v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "Nothing to do: pass --render, --replay, or --service")
		flag.Usage()
		os.Exit(2)
	}
}
