package publishd

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/halvard/stanza/internal/logfields"
)

// healthResponse is the /healthz payload.
type healthResponse struct {
	Status    string       `json:"status"`
	UptimeSec int64        `json:"uptime_seconds"`
	LastBuild *buildStatus `json:"last_build,omitempty"`
}

// buildStatus is one build as reported over HTTP.
type buildStatus struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Pages      int       `json:"pages"`
	Warnings   int       `json:"warnings"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
}

func (d *Daemon) startHTTP() error {
	addr := net.JoinHostPort(d.cfg.Server.Bind, strconv.Itoa(d.cfg.Server.Port))
	d.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		slog.Info("HTTP server listening", logfields.Port(d.cfg.Server.Port))
		if err := d.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", logfields.Error(err))
		}
	}()
	return nil
}

func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealthz)
	mux.HandleFunc("GET /builds", d.handleBuilds)
	mux.HandleFunc("POST /webhook", d.handleWebhook)
	if d.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.FileServer(http.Dir(d.SiteDir())))
	return mux
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		UptimeSec: int64(time.Since(d.startTime).Seconds()),
	}

	d.mu.RLock()
	if d.lastRecord != nil {
		rec := *d.lastRecord
		resp.LastBuild = &buildStatus{
			ID:         rec.ID,
			Trigger:    rec.Trigger,
			Outcome:    rec.Outcome,
			Pages:      rec.Pages,
			Warnings:   rec.Warnings,
			Started:    rec.Started,
			DurationMS: rec.Duration.Milliseconds(),
		}
		if rec.Outcome == "failed" {
			resp.Status = "degraded"
		}
	}
	d.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleBuilds(w http.ResponseWriter, r *http.Request) {
	records, err := d.store.Recent(r.Context(), 20)
	if err != nil {
		http.Error(w, "failed to read build history", http.StatusInternalServerError)
		return
	}

	out := make([]buildStatus, 0, len(records))
	for _, rec := range records {
		out = append(out, buildStatus{
			ID:         rec.ID,
			Trigger:    rec.Trigger,
			Outcome:    rec.Outcome,
			Pages:      rec.Pages,
			Warnings:   rec.Warnings,
			Started:    rec.Started,
			DurationMS: rec.Duration.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWebhook accepts push notifications from the git host. When a shared
// secret is configured the X-Webhook-Token header must match it.
func (d *Daemon) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if secret := d.cfg.Daemon.WebhookSecret; secret != "" {
		token := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			http.Error(w, "invalid webhook token", http.StatusUnauthorized)
			return
		}
	}

	d.debouncer.Request("webhook")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode HTTP response", logfields.Error(err))
	}
}
