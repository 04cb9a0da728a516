// Package api serves run data and loop status over HTTP, and provides the
// client chasectl uses to read it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/pursuitlab/roadchase/internal/dispatcher"
	apphandlers "github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/internal/parser"
	"github.com/pursuitlab/roadchase/internal/storage"
)

// StatusSource is implemented by handlers.Service.
type StatusSource interface {
	Status(ctx context.Context) (apphandlers.Status, error)
}

// DispatchFunc routes a host command, usually dispatcher.Dispatcher.Dispatch.
type DispatchFunc func(dispatcher.Event) (any, error)

// Dependencies holds what the server exposes. Nil members disable their routes
// with 503.
type Dependencies struct {
	Status   StatusSource
	Runs     storage.Reader
	Dispatch DispatchFunc
	Logger   *slog.Logger
	// AccessLog receives Apache combined log lines when set.
	AccessLog io.Writer
}

// Server is the status and control HTTP server.
type Server struct {
	deps   Dependencies
	router *mux.Router
	srv    *http.Server
}

// NewServer builds the router. Call ListenAndServe to serve on addr.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, router: mux.NewRouter()}

	s.router.HandleFunc("/healthcheck", s.healthcheck).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.status).Methods(http.MethodGet)
	s.router.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id:[a-zA-Z0-9_\\-]+}", s.getRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id:[a-zA-Z0-9_\\-]+}/frames", s.runFrames).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id:[a-zA-Z0-9_\\-]+}/events", s.runEvents).Methods(http.MethodGet)

	control := s.router.PathPrefix("/control").Subrouter()
	control.HandleFunc("/reset", s.control(apphandlers.CmdReset, resetArgs)).Methods(http.MethodPost)
	control.HandleFunc("/speed", s.control(apphandlers.CmdSpeed, speedArgs)).Methods(http.MethodPost)
	control.HandleFunc("/color", s.control(apphandlers.CmdColor, colorArgs)).Methods(http.MethodPost)

	var h http.Handler = s.router
	if deps.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(deps.AccessLog, h)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	s.deps.Logger.Info("API listening", "address", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

var errUnavailable = errors.New("not available")

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	st, err := s.deps.Status.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := s.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.storageError(w, err)
		return
	}
	out := make([]RunSummary, len(recs))
	for i, rec := range recs {
		out[i] = Summarize(rec, false)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	rec, err := s.deps.Runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(rec, true))
}

func (s *Server) runFrames(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	frames, err := s.deps.Runs.RunFrames(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) runEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	events, err := s.deps.Runs.RunEvents(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.deps.Logger.Error("storage read failed", "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func resetArgs(req ControlRequest) ([]string, error) {
	if req.Seed == nil {
		return nil, nil
	}
	return []string{strconv.FormatUint(*req.Seed, 10)}, nil
}

func speedArgs(req ControlRequest) ([]string, error) {
	if req.Factor == nil {
		return nil, errors.New("factor is required")
	}
	return []string{strconv.FormatFloat(*req.Factor, 'f', -1, 64)}, nil
}

func colorArgs(req ControlRequest) ([]string, error) {
	if req.Color == "" {
		return nil, errors.New("color is required")
	}
	return []string{req.Color}, nil
}

// control turns a JSON body into a host command and dispatches it.
func (s *Server) control(command string, args func(ControlRequest) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Dispatch == nil {
			writeError(w, http.StatusServiceUnavailable, errUnavailable)
			return
		}
		var req ControlRequest
		body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		a, err := args(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		res, err := s.deps.Dispatch(dispatcher.Event{Command: command, Args: a, Timestamp: time.Now()})
		switch {
		case errors.Is(err, parser.ErrInvalidArgs):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, dispatcher.ErrUnknownCommand):
			writeError(w, http.StatusNotImplemented, err)
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
		default:
			writeJSON(w, http.StatusOK, ControlResponse{Result: res})
		}
	}
}
