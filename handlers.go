package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kwv/tagmap/fuse"
)

// listenAndServe is indirected for tests.
var listenAndServe = http.ListenAndServe

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(app *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		tags, arcs := app.MapStats()
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Tags      int       `json:"tags"`
			Arcs      int       `json:"arcs"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Tags:      tags,
			Arcs:      arcs,
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Rendered map, vector form
	mux.HandleFunc("/map.svg", func(w http.ResponseWriter, r *http.Request) {
		data, err := app.RenderSVG()
		if err != nil {
			log.Printf("Error rendering SVG: %v", err)
			http.Error(w, "Render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing SVG response: %v", err)
		}
	})

	// Rendered map, raster form
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		data, err := app.RenderPNG()
		if err != nil {
			log.Printf("Error rendering PNG: %v", err)
			http.Error(w, "Render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing PNG response: %v", err)
		}
	})

	// Map as GeoJSON for web frontends
	mux.HandleFunc("/map.json", func(w http.ResponseWriter, r *http.Request) {
		data, err := app.MapGeoJSON()
		if err != nil {
			log.Printf("Error exporting GeoJSON: %v", err)
			http.Error(w, "Export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing GeoJSON response: %v", err)
		}
	})

	// Latest announced tag poses
	mux.HandleFunc("/tags", func(w http.ResponseWriter, r *http.Request) {
		poses := app.Tracker.GetPoses()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(poses); err != nil {
			log.Printf("Error encoding tag poses: %v", err)
		}
	})

	// Robot trajectory: GET returns the recorded points, POST appends one
	mux.HandleFunc("/trajectory", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(app.Tracker.GetTrajectory()); err != nil {
				log.Printf("Error encoding trajectory: %v", err)
			}
		case http.MethodPost:
			var loc fuse.Location
			if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
				http.Error(w, "Invalid location JSON", http.StatusBadRequest)
				return
			}
			if loc.Timestamp == 0 {
				loc.Timestamp = time.Now().Unix()
			}
			app.Tracker.RecordLocation(loc)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			app.Tracker.ClearTrajectory()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Per-camera ingest statistics
	mux.HandleFunc("/cameras", func(w http.ResponseWriter, r *http.Request) {
		counts, last := app.Tracker.FrameStats()
		type cameraStatus struct {
			ID        string    `json:"id"`
			Frames    int       `json:"frames"`
			LastFrame time.Time `json:"lastFrame,omitempty"`
		}
		statuses := make([]cameraStatus, 0, len(app.Config.Cameras))
		for _, camera := range app.Config.Cameras {
			statuses = append(statuses, cameraStatus{
				ID:        camera.ID,
				Frames:    counts[camera.ID],
				LastFrame: last[camera.ID],
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			log.Printf("Error encoding camera stats: %v", err)
		}
	})

	return mux
}
