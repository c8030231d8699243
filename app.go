package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tdewolff/canvas"

	"github.com/kwv/tagmap/fuse"
)

// App wires the fusion engine to its collaborators: the height table, the
// MQTT frame feed, the pose publisher, the pose tracker, and the HTTP
// server. The engine itself is single-threaded; App serializes all engine
// access behind mapMu so MQTT handlers and HTTP handlers can coexist.
type App struct {
	Config    *fuse.Config
	Heights   *fuse.HeightTable
	Tracker   *fuse.Tracker
	Publisher *fuse.Publisher

	mapMu  sync.Mutex
	tagMap *fuse.Map

	mapFile     string
	gridSpacing float64
	resolution  float64
}

// AppOptions carries command-line overrides applied on top of the config file.
type AppOptions struct {
	MapFile     string
	HeightsFile string
	GridSpacing float64
	Resolution  float64
}

// NewApp creates an App around the given config.
func NewApp(config *fuse.Config) *App {
	return &App{
		Config:      config,
		Heights:     fuse.NewHeightTable(),
		Tracker:     fuse.NewTracker(),
		gridSpacing: config.GridSpacing,
		resolution:  config.VectorResolution,
		mapFile:     config.MapFile,
	}
}

// ApplyOptions overlays command-line flags onto the config-derived settings.
func (a *App) ApplyOptions(opts AppOptions) {
	if opts.MapFile != "" {
		a.mapFile = opts.MapFile
	}
	if opts.HeightsFile != "" {
		a.Config.HeightsFile = opts.HeightsFile
	}
	if opts.GridSpacing > 0 {
		a.gridSpacing = opts.GridSpacing
	}
	if opts.Resolution > 0 {
		a.resolution = opts.Resolution
	}
}

// LoadData loads the height table and restores the persisted map when one
// exists. A missing map file starts an empty map; a malformed one aborts so
// a good map on disk is never overwritten by a fresh empty one.
func (a *App) LoadData() error {
	if a.Config.HeightsFile != "" {
		heights, err := fuse.RestoreHeights(a.Config.HeightsFile)
		if err != nil {
			return fmt.Errorf("loading height table: %w", err)
		}
		a.Heights = heights
		log.Printf("Loaded %d height spans from %s", len(heights.Entries()), a.Config.HeightsFile)
	} else {
		log.Println("warning: no height table configured; unknown tags measure at zero distance")
	}

	announce := a.Tracker.Announce()

	if a.mapFile != "" {
		if _, err := os.Stat(a.mapFile); err == nil {
			m, err := fuse.RestoreMap(a.mapFile, a.Heights, announce)
			if err != nil {
				return fmt.Errorf("restoring map: %w", err)
			}
			a.tagMap = m
			log.Printf("Restored map from %s: %d tags, %d arcs", a.mapFile, len(m.Tags), len(m.Arcs))
		}
	}
	if a.tagMap == nil {
		a.tagMap = fuse.NewMap(a.Heights, announce)
		log.Println("Starting with an empty map")
	}
	return nil
}

// AttachPublisher chains an MQTT pose publisher into the announce path.
func (a *App) AttachPublisher(publisher *fuse.Publisher) {
	a.Publisher = publisher
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	a.tagMap.SetAnnounce(fuse.ChainAnnounce(a.Tracker.Announce(), publisher.Announce()))
}

// HandleFrame is the MQTT frame callback: it fuses the frame's detection
// pairs into the map and re-propagates poses when anything improved.
func (a *App) HandleFrame(cameraID string, raw []byte, frame *fuse.Frame, err error) {
	if err != nil {
		log.Printf("Dropping undecodable frame from %s: %v", cameraID, err)
		return
	}
	a.Tracker.RecordFrame(cameraID)

	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	updated := a.tagMap.IngestFrame(frame)
	if updated > 0 {
		log.Printf("Frame from %s improved %d arc(s)", cameraID, updated)
	}
	a.tagMap.Update()
}

// IngestFrame fuses one frame outside the MQTT path (replay, polling) and
// returns the number of arcs that improved.
func (a *App) IngestFrame(frame *fuse.Frame) int {
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	return a.tagMap.IngestFrame(frame)
}

// UpdateMap runs pose propagation if the map is dirty.
func (a *App) UpdateMap() {
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	a.tagMap.Update()
}

// SaveMap persists the map XML when a map file is configured.
func (a *App) SaveMap() error {
	if a.mapFile == "" {
		return nil
	}
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	a.tagMap.Update()
	if err := a.tagMap.Save(a.mapFile); err != nil {
		return fmt.Errorf("saving map: %w", err)
	}
	log.Printf("Saved map to %s: %d tags, %d arcs", a.mapFile, len(a.tagMap.Tags), len(a.tagMap.Arcs))
	return nil
}

// newRenderer builds a renderer over the current map and trajectory.
// Callers must hold mapMu.
func (a *App) newRenderer() *fuse.MapRenderer {
	r := fuse.NewMapRenderer(a.tagMap)
	r.Trajectory = a.Tracker.GetTrajectory()
	r.GridSpacing = a.gridSpacing
	r.Resolution = canvas.DPI(a.resolution)
	return r
}

// RenderSVG renders the current map as SVG bytes.
func (a *App) RenderSVG() ([]byte, error) {
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	a.tagMap.Update()
	var buf bytes.Buffer
	if err := a.newRenderer().RenderToSVG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPNG renders the current map as PNG bytes.
func (a *App) RenderPNG() ([]byte, error) {
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	a.tagMap.Update()
	var buf bytes.Buffer
	if err := a.newRenderer().RenderToPNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MapGeoJSON exports the current map, plus the robot trajectory when one
// has been recorded, as GeoJSON bytes.
func (a *App) MapGeoJSON() ([]byte, error) {
	a.mapMu.Lock()
	a.tagMap.Update()
	fc := a.tagMap.FeatureCollection()
	a.mapMu.Unlock()

	if trajectory := a.Tracker.GetTrajectory(); len(trajectory) > 0 {
		fc.Append(fuse.TrajectoryFeature(trajectory, fuse.DefaultTrajectoryTolerance))
	}
	return fc.MarshalJSON()
}

// MapStats returns tag and arc counts for status endpoints.
func (a *App) MapStats() (int, int) {
	a.mapMu.Lock()
	defer a.mapMu.Unlock()
	return len(a.tagMap.Tags), len(a.tagMap.Arcs)
}

// RunRender renders the loaded map to files and exits: <output>.svg,
// <output>.png, or both depending on format.
func (a *App) RunRender(format, output string) error {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	if format == "svg" || format == "both" {
		data, err := a.RenderSVG()
		if err != nil {
			return fmt.Errorf("rendering SVG: %w", err)
		}
		path := base + ".svg"
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("Wrote %s", path)
	}
	if format == "png" || format == "both" {
		data, err := a.RenderPNG()
		if err != nil {
			return fmt.Errorf("rendering PNG: %w", err)
		}
		path := base + ".png"
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("Wrote %s", path)
	}
	return nil
}

// RunReplay ingests every recorded frame file (*.json) in dataDir in name
// order, propagates poses, saves the map, and prints a summary.
func (a *App) RunReplay(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("reading data dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dataDir, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return fmt.Errorf("no frame files found in %s", dataDir)
	}

	frames, improved := 0, 0
	for _, path := range paths {
		frame, err := fuse.ParseFrameFile(path)
		if err != nil {
			log.Printf("warning: skipping %s: %v", path, err)
			continue
		}
		improved += a.IngestFrame(frame)
		frames++
	}
	a.UpdateMap()

	tags, arcs := a.MapStats()
	log.Printf("Replayed %d frames (%d arc improvements): %d tags, %d arcs", frames, improved, tags, arcs)
	return a.SaveMap()
}

// PollCameras fetches one frame from every camera configured with an API
// URL and fuses it. Used by the service loop for HTTP-polled cameras.
func (a *App) PollCameras() {
	for _, camera := range a.Config.Cameras {
		if camera.ApiURL == nil || *camera.ApiURL == "" {
			continue
		}
		frame, err := fuse.FetchFrameFromAPI(*camera.ApiURL)
		if err != nil {
			log.Printf("warning: polling camera %s: %v", camera.ID, err)
			continue
		}
		a.Tracker.RecordFrame(camera.ID)
		if a.IngestFrame(frame) > 0 {
			a.UpdateMap()
		}
	}
}

// hasPolledCameras reports whether any camera is configured for HTTP polling.
func (a *App) hasPolledCameras() bool {
	for _, camera := range a.Config.Cameras {
		if camera.ApiURL != nil && *camera.ApiURL != "" {
			return true
		}
	}
	return false
}

// RunService runs the long-lived service: MQTT frame ingestion, periodic
// camera polling, periodic map autosave, and an optional HTTP server. It
// blocks until SIGINT or SIGTERM, then saves the map one last time.
func (a *App) RunService(httpEnabled bool, httpPort int) error {
	mqttClient, err := fuse.InitMQTT(a.Config, a.HandleFrame)
	if err != nil {
		return fmt.Errorf("initializing MQTT: %w", err)
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect()
		publisher := fuse.NewPublisher(mqttClient.GetClient())
		if a.Config.MQTT.PublishPrefix != "" {
			publisher.SetPrefix(a.Config.MQTT.PublishPrefix)
		}
		a.AttachPublisher(publisher)
	}

	if httpEnabled {
		server := newHTTPServer(a)
		go func() {
			addr := fmt.Sprintf(":%d", httpPort)
			log.Printf("HTTP server listening on %s", addr)
			if err := listenAndServe(addr, server); err != nil {
				log.Printf("HTTP server stopped: %v", err)
			}
		}()
	}

	saveTicker := time.NewTicker(time.Duration(a.Config.SaveIntervalSec) * time.Second)
	defer saveTicker.Stop()

	pollTicker := time.NewTicker(5 * time.Second)
	defer pollTicker.Stop()
	if !a.hasPolledCameras() {
		pollTicker.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Service running; press Ctrl-C to stop")
	for {
		select {
		case <-pollTicker.C:
			a.PollCameras()
		case <-saveTicker.C:
			if err := a.SaveMap(); err != nil {
				log.Printf("warning: autosave failed: %v", err)
			}
		case sig := <-sigCh:
			log.Printf("Received %v, shutting down", sig)
			return a.SaveMap()
		}
	}
}
