// Package api exposes the HTTP surface of the collector: listing stored
// calls, triggering and streaming collection runs, maintenance endpoints,
// CSV export, and a PDF download proxy.
package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"editalwatch/collector-service/internal/discover"
	"editalwatch/collector-service/internal/model"
	"editalwatch/collector-service/internal/pipeline"
)

// Records is the read and maintenance surface of the store.
type Records interface {
	List(ctx context.Context, term string) ([]model.CallRecord, error)
	All(ctx context.Context) ([]model.CallRecord, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	LastRun(ctx context.Context) (string, bool, error)
	Reset(ctx context.Context) (int, error)
}

// Runner triggers a collection run.
type Runner interface {
	Run(ctx context.Context, progress pipeline.ProgressFunc) ([]model.CallRecord, error)
}

// Downloader fetches a remote document for the download proxy.
type Downloader interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Server holds the handler dependencies. Collection runs are serialized:
// a second trigger while one is in flight is refused, not queued.
type Server struct {
	records  Records
	runner   Runner
	download Downloader
	now      func() time.Time
	log      *zap.Logger

	runMu sync.Mutex
}

// New builds a Server. A nil logger disables logging.
func New(records Records, runner Runner, download Downloader, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		records:  records,
		runner:   runner,
		download: download,
		now:      time.Now,
		log:      log,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleList)
	mux.HandleFunc("/collect", s.handleCollect)
	mux.HandleFunc("/collect/stream", s.handleCollectStream)
	mux.HandleFunc("/purge", s.handlePurge)
	mux.HandleFunc("/export.csv", s.handleExport)
	mux.HandleFunc("/download", s.handleDownload)
	mux.HandleFunc("/last-run", s.handleLastRun)
	mux.HandleFunc("/debug", s.handleDebug)
	mux.HandleFunc("/admin/reset", s.handleReset)
	return mux
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: "collector-service",
		Version: "1.0.0",
	})
}

// handleList serves the stored calls, most-recent-first, optionally
// filtered by ?q= on title or agency.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	records, err := s.records.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, "list calls", err)
		return
	}
	if records == nil {
		records = []model.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "collection already running"})
		return
	}
	defer s.runMu.Unlock()

	records, err := s.runner.Run(r.Context(), nil)
	if err != nil {
		s.fail(w, "collection run", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new": len(records)})
}

// handleCollectStream runs a collection and streams progress as
// server-sent events: one progress event per source, then a complete
// event carrying the new-record count.
func (s *Server) handleCollectStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "collection already running"})
		return
	}
	defer s.runMu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	_, err := s.runner.Run(r.Context(), func(ev model.Progress) {
		if ev.Done {
			send(map[string]any{"type": "complete", "total": ev.Total, "new": ev.New})
			return
		}
		send(map[string]any{"type": "progress", "current": ev.Current, "total": ev.Total})
	})
	if err != nil {
		// Usually the client went away; there may be nobody left to read
		// this, but send it for the ones still connected.
		send(map[string]any{"type": "error", "message": err.Error()})
		s.log.Warn("streamed collection failed", zap.Error(err))
	}
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	removed, err := s.records.PurgeExpired(r.Context(), s.now())
	if err != nil {
		s.fail(w, "purge expired", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

var csvHeader = []string{"title", "agency", "deadline", "amount", "link", "source", "published_at", "created_at"}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	records, err := s.records.All(r.Context())
	if err != nil {
		s.fail(w, "export calls", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="editais.csv"`)

	cw := csv.NewWriter(w)
	cw.Write(csvHeader)
	for _, rec := range records {
		cw.Write([]string{
			rec.Title, rec.Agency, rec.Deadline, rec.Amount,
			rec.Link, rec.SourceLabel, rec.PublishedAt,
			rec.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Warn("csv export truncated", zap.Error(err))
	}
}

// handleDownload proxies a stored document so browsers get a clean
// filename and a PDF content type regardless of how the agency serves it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url parameter is required"})
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url must be absolute"})
		return
	}

	data, err := s.download.Get(r.Context(), url)
	if err != nil {
		s.log.Warn("download proxy failed", zap.String("url", url), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "document download failed"})
		return
	}

	name := discover.FilenameFromURL(url)
	if name == "" {
		name = "documento"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	value, ok, err := s.records.LastRun(r.Context())
	if err != nil {
		s.fail(w, "read last run", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"lastRun": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lastRun": value})
}

// handleDebug returns the ten most recent records, a quick sanity view.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	records, err := s.records.All(r.Context())
	if err != nil {
		s.fail(w, "debug list", err)
		return
	}
	total := len(records)
	if len(records) > 10 {
		records = records[:10]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"recent": records,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	removed, err := s.records.Reset(r.Context())
	if err != nil {
		s.fail(w, "reset store", err)
		return
	}
	s.log.Info("store reset", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
