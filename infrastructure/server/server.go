package server

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

// multipartOverhead is the room left for boundaries and part headers around the file.
const multipartOverhead = 1 << 20

const fileField = "file"

// Deps are the collaborators the HTTP boundary routes to.
type Deps struct {
	Events         http.Handler
	Uploads        services.IUploadService
	Blobs          contract.BlobStore
	Participants   workers.Counter
	MaxUploadBytes int64
	StaticDir      string
}

// Server exposes the event channel, the upload endpoint and the stored files.
type Server struct {
	log     *slog.Logger
	deps    Deps
	router  *httprouter.Router
	server  *http.Server
	started time.Time
}

func NewServer(log *slog.Logger, address string, deps Deps) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = services.DefaultMaxUploadBytes
	}
	s := &Server{
		log:     log,
		deps:    deps,
		router:  httprouter.New(),
		started: time.Now(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handler(http.MethodGet, "/ws", s.deps.Events)
	s.router.POST("/upload", s.handleUpload)
	s.router.GET("/uploads/:name", s.handleDownload)
	s.router.GET("/healthz", s.handleHealth)

	if st, err := os.Stat(s.deps.StaticDir); err == nil && st.IsDir() {
		s.router.NotFound = http.FileServer(http.Dir(s.deps.StaticDir))
	}
}

// Handler is the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "address", s.server.Addr, "at", time.Now().UTC())
	if err := s.server.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type uploadResponse struct {
	Success bool `json:"success"`
	services.StoredFile
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := s.deps.MaxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		s.writeError(w, errors.ErrFileTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	part, err := filePart(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer part.Close()

	stored, err := s.deps.Uploads.Accept(r.Context(), services.Upload{
		OriginalName: part.FileName(),
		Size:         -1,
		Body:         part,
	})
	var maxBytesErr *http.MaxBytesError
	if goerrors.As(err, &maxBytesErr) {
		err = fmt.Errorf("%w: %v", errors.ErrFileTooLarge, err)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{Success: true, StoredFile: stored})
}

// filePart streams to the "file" field without buffering the whole form.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrNoFileUploaded, err)
	}
	for {
		part, err := mr.NextPart()
		if goerrors.Is(err, io.EOF) {
			return nil, errors.ErrNoFileUploaded
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrNoFileUploaded, err)
		}
		if part.FormName() == fileField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	rc, info, err := s.deps.Blobs.Open(r.Context(), name)
	if err != nil {
		if !goerrors.Is(err, errors.ErrBlobNotFound) {
			s.log.Error("Failed to open stored file", "filename", name, "error", err)
		}
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, info.ModTime, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("Download interrupted", "filename", name, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stats, err := workers.SelfStats(s.deps.Participants, s.started)
	if err != nil {
		s.log.Error("Failed to collect self stats", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "stats unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// writeError never leaks internal detail: only the mapped public message is sent.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Upload failed", "error", err)
	} else {
		s.log.Warn("Request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Failed to write response", "error", err)
	}
}
