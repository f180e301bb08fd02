// Package monitor exposes the HTTP debug surface of the registration
// pipeline: health and parameter endpoints, recent sweep summaries from
// the store, and visual debug charts of the latest sweep's features.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kestrel-data/sweepfeatures/internal/config"
	"github.com/kestrel-data/sweepfeatures/internal/sweep"
)

// WebServer handles the HTTP monitoring interface.
type WebServer struct {
	address string
	params  config.Params
	stats   *sweep.PacketStats
	store   *sweep.Store
	mount   *sweep.MountResolver
	latest  *LatestSweep
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Params  config.Params
	Stats   *sweep.PacketStats
	// Store may be nil; the summaries endpoint then reports an error.
	Store *sweep.Store
	// Mount may be nil when no IMU-to-lidar transform applies.
	Mount  *sweep.MountResolver
	Latest *LatestSweep
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address: cfg.Address,
		params:  cfg.Params,
		stats:   cfg.Stats,
		store:   cfg.Store,
		mount:   cfg.Mount,
		latest:  cfg.Latest,
		started: time.Now(),
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/sweep/params", ws.handleParams)
	mux.HandleFunc("/api/sweep/summaries", ws.handleSummaries)
	mux.HandleFunc("/api/sweep/status", ws.handleStatus)
	mux.HandleFunc("/debug/features", ws.handleFeatureScatter)
	mux.HandleFunc("/debug/curvature", ws.handleCurvatureProfile)

	return mux
}

// Start runs the HTTP server until the context is cancelled, then shuts
// it down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "sweep", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleParams returns the running registration parameters. The JSON
// shape matches the config file schema so a response can be replayed as
// a startup config.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	period := ws.params.ScanPeriod.String()
	f := config.File{
		ScanPeriod:                &period,
		IMUHistorySize:            &ws.params.IMUHistorySize,
		FeatureRegions:            &ws.params.FeatureRegions,
		CurvatureRegion:           &ws.params.CurvatureRegion,
		MaxCornerSharp:            &ws.params.MaxCornerSharp,
		MaxCornerLessSharp:        &ws.params.MaxCornerLessSharp,
		MaxSurfaceFlat:            &ws.params.MaxSurfaceFlat,
		SurfaceCurvatureThreshold: &ws.params.SurfaceCurvatureThreshold,
		LessFlatFilterSize:        &ws.params.LessFlatFilterSize,
		MountRollDeg:              ws.params.MountRollDeg,
		MountPitchDeg:             ws.params.MountPitchDeg,
		MountYawDeg:               ws.params.MountYawDeg,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(f)
}

// handleStatus reports mount resolution state and uptime.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	mountState := "not configured"
	if ws.mount != nil {
		mountState = ws.mount.State().String()
	}
	status := map[string]interface{}{
		"uptime":      time.Since(ws.started).Round(time.Second).String(),
		"mount_state": mountState,
	}
	if _, _, summary, ok := ws.latestSweep(); ok {
		status["last_sweep_id"] = summary.SweepID
		status["last_sweep_compensated"] = summary.Compensated
		status["last_sweep_degraded_points"] = summary.DegradedPoints
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleSummaries returns recent sweep summaries as JSON.
// Query params: limit (optional, default 20, max 500).
func (ws *WebServer) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured for summary lookup")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	records, err := ws.store.RecentSummaries(r.Context(), limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get recent summaries: %v", err))
		return
	}

	type summaryJSON struct {
		SweepID        string  `json:"sweep_id"`
		Start          string  `json:"start"`
		End            string  `json:"end"`
		ShiftX         float64 `json:"shift_x"`
		ShiftY         float64 `json:"shift_y"`
		ShiftZ         float64 `json:"shift_z"`
		Compensated    bool    `json:"compensated"`
		DegradedPoints int     `json:"degraded_points"`
		TotalPoints    int     `json:"total_points"`
		Sharp          int     `json:"sharp"`
		LessSharp      int     `json:"less_sharp"`
		Flat           int     `json:"flat"`
		LessFlat       int     `json:"less_flat"`
	}
	out := make([]summaryJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, summaryJSON{
			SweepID:        rec.SweepID,
			Start:          rec.Start.Format(time.RFC3339Nano),
			End:            rec.End.Format(time.RFC3339Nano),
			ShiftX:         rec.Shift.X,
			ShiftY:         rec.Shift.Y,
			ShiftZ:         rec.Shift.Z,
			Compensated:    rec.Compensated,
			DegradedPoints: rec.DegradedPoints,
			TotalPoints:    rec.TotalPoints,
			Sharp:          rec.SharpCount,
			LessSharp:      rec.LessSharpCount,
			Flat:           rec.FlatCount,
			LessFlat:       rec.LessFlatCount,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (ws *WebServer) latestSweep() (*sweep.Sweep, *sweep.Features, sweep.MotionSummary, bool) {
	if ws.latest == nil {
		return nil, nil, sweep.MotionSummary{}, false
	}
	return ws.latest.Get()
}
