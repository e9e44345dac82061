// Package server provides the browser UI: upload or link a video, watch the
// segments being transcribed, read the transcript.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/eren1106/video-audio-to-text-converter/internal/pipeline"
	"github.com/eren1106/video-audio-to-text-converter/internal/source"
)

//go:embed static
var staticFiles embed.FS

const (
	runTTL          = time.Hour
	evictInterval   = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Runner executes transcription runs. *worker.Runner implements it.
type Runner interface {
	Stage(ctx context.Context, name string, body io.Reader) (*source.Media, error)
	Resolve(ctx context.Context, input string) (*source.Media, error)
	Run(ctx context.Context, media *source.Media, chunkLength time.Duration, obs pipeline.Observer) (*pipeline.Result, error)
	ChunkLength() time.Duration
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
}

// Server serves the UI and runs transcriptions in the background.
type Server struct {
	opts     Options
	runner   Runner
	runs     *registry
	router   *mux.Router
	upgrader websocket.Upgrader

	// Runs outlive their request; they stop when the server shuts down.
	runCtx    context.Context
	cancelRun context.CancelFunc
	jobs      sync.WaitGroup

	// mu guards closing so no run is added to jobs once Close waits on it.
	mu      sync.Mutex
	closing bool
}

// New returns a Server for runner.
func New(runner Runner, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:      opts,
		runner:    runner,
		runs:      newRegistry(),
		runCtx:    ctx,
		cancelRun: cancel,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/runs", s.handleCreateRun).Methods(http.MethodPost)
	router.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/ws/runs/{id}", s.handleWebSocket)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	router.PathPrefix("/").Handler(http.FileServer(http.FS(static))).Methods(http.MethodGet)

	s.router = router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on Options.Addr until ctx is canceled, then shuts down the
// listener, cancels in-flight runs and waits for them to release their media.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("UI listening", "addr", "http://"+s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if n := s.runs.evict(now, runTTL); n > 0 {
					slog.Debug("evicted finished runs", "count", n)
				}
			}
		}
	})
	return g.Wait()
}

// Close cancels in-flight runs and waits for them to finish. Runs submitted
// afterwards are rejected.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancelRun()
	s.jobs.Wait()
}

// startJob registers a background run unless the server is closing.
func (s *Server) startJob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.jobs.Add(1)
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"chunk_length_seconds": int(s.runner.ChunkLength() / time.Second),
	})
}

// handleCreateRun accepts either a multipart upload in field "file" or a
// remote video link in field "url", plus an optional "chunk_length" in
// seconds. Fields must precede the file part in multipart bodies.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	req, err := s.readRunRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, source.ErrUnsupported):
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err.Error())
		return
	}

	if !s.startJob() {
		if req.media != nil {
			releaseMedia(req.media)
		}
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	rn := newRun(uuid.NewString(), req.source)
	s.runs.add(rn)
	go s.execute(rn, req)

	slog.Info("run accepted", "run", rn.id, "source", req.source)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": rn.id})
}

type runRequest struct {
	source      string
	url         string
	media       *source.Media
	chunkLength time.Duration
}

func (s *Server) readRunRequest(r *http.Request) (*runRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return s.buildRequest(r.Context(), r.PostForm.Get("url"), r.PostForm.Get("chunk_length"), nil)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	var rawURL, rawChunk string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch part.FormName() {
		case "url", "chunk_length":
			value, err := io.ReadAll(io.LimitReader(part, 4096))
			part.Close()
			if err != nil {
				return nil, err
			}
			if part.FormName() == "url" {
				rawURL = string(value)
			} else {
				rawChunk = string(value)
			}
		case "file":
			if part.FileName() == "" {
				part.Close()
				continue
			}
			req, err := s.buildRequest(r.Context(), rawURL, rawChunk, part)
			part.Close()
			return req, err
		default:
			part.Close()
		}
	}
	return s.buildRequest(r.Context(), rawURL, rawChunk, nil)
}

func (s *Server) buildRequest(ctx context.Context, rawURL, rawChunk string, file *multipart.Part) (*runRequest, error) {
	chunk, err := parseChunkLength(rawChunk)
	if err != nil {
		return nil, err
	}
	req := &runRequest{chunkLength: chunk}

	if file != nil {
		media, err := s.runner.Stage(ctx, file.FileName(), file)
		if err != nil {
			return nil, err
		}
		req.media = media
		req.source = media.Name
		return req, nil
	}

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New(`provide an upload in "file" or a link in "url"`)
	}
	if !source.IsRemote(rawURL) {
		return nil, fmt.Errorf("url must be an http(s) link, got %q", rawURL)
	}
	req.url = rawURL
	req.source = rawURL
	return req, nil
}

func parseChunkLength(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("chunk_length must be a positive number of seconds, got %q", raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// execute runs in its own goroutine for the lifetime of a run.
func (s *Server) execute(rn *run, req *runRequest) {
	defer s.jobs.Done()
	ctx := s.runCtx

	media := req.media
	if media == nil {
		rn.publish(Event{Type: EventFetching, Text: req.url})
		m, err := s.runner.Resolve(ctx, req.url)
		if err != nil {
			slog.Warn("fetch failed", "run", rn.id, "err", err)
			rn.fail(err)
			return
		}
		media = m
	}

	res, err := s.runner.Run(ctx, media, req.chunkLength, rn)
	if err != nil {
		slog.Warn("run failed", "run", rn.id, "err", err)
	}
	// Errors before the pipeline starts never reach the observer.
	rn.mu.Lock()
	done := rn.done
	rn.mu.Unlock()
	switch {
	case done:
	case err != nil:
		rn.fail(err)
	default:
		rn.Finished(res, nil)
	}
	if res != nil {
		slog.Info("run finished", "run", rn.id, "state", res.State, "segments", len(res.Segments), "failed", len(res.Failures()))
	}
}

func releaseMedia(m *source.Media) {
	if err := m.Release(); err != nil {
		slog.Warn("failed to release media", "path", m.Path, "error", err)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rn, ok := s.runs.get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rn.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
