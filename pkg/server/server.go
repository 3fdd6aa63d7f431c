package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/patch"
)

// Options configures a Server.
type Options struct {
	Addr   string
	Store  BoardStore
	Broker Broker // nil keeps rooms instance-local
	Logger *log.Logger
}

// Server is the board authority process.
type Server struct {
	addr   string
	store  BoardStore
	logger *log.Logger
	hub    *hub
	http   *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Rooms are addressed by unguessable ids; origin checks belong to the
	// deployment's proxy layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// New builds a server. Call ListenAndServe to run it.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		addr:   opts.Addr,
		store:  opts.Store,
		logger: logger,
		hub:    newHub(logger, opts.Broker),
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the HTTP handler, exposed separately for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/boards/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetBoard)
		r.Put("/", s.handlePutBoard)
		r.Patch("/", s.handlePatchBoard)
	})
	r.Get("/rooms/{id}/ws", s.handleRoom)
	return r
}

// ListenAndServe runs until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(b.Version, 10))
	writeJSON(w, http.StatusOK, b)
}

// handlePutBoard creates or replaces a board outright. Intended for board
// creation; collaborative edits go through PATCH.
func (s *Server) handlePutBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var b Board
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode board"))
		return
	}
	b.ID = id
	if err := s.store.Put(r.Context(), &b); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"version": b.Version})
}

func (s *Server) handlePatchBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	expected, err := strconv.ParseInt(r.Header.Get("If-Match"), 10, 64)
	if err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "missing or malformed If-Match header"))
		return
	}
	var ops []patch.Operation
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidPatch, err, "decode operations"))
		return
	}

	b, err := s.store.ApplyPatch(r.Context(), id, expected, ops)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Debug("board patched", "board", id, "ops", len(ops), "version", b.Version)
	writeJSON(w, http.StatusOK, map[string]int64{"version": b.Version})
}

// handleRoom upgrades to a websocket and relays room traffic until the
// client disconnects.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "room", roomName, "err", err)
		return
	}

	// The room's broker subscription must outlive this first member's
	// request, so the hub gets a background context.
	m := s.hub.join(context.Background(), roomName, conn)
	s.logger.Info("participant joined", "room", roomName, "members", s.hub.memberCount(roomName))
	defer func() {
		s.hub.leave(roomName, m)
		s.logger.Info("participant left", "room", roomName, "members", s.hub.memberCount(roomName))
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.relay(r.Context(), roomName, m, payload)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Version conflicts
// return 412 with the authoritative version so clients can re-fetch.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var conflict *errors.VersionConflictError
	if stderrors.As(err, &conflict) {
		writeJSON(w, http.StatusPreconditionFailed, map[string]int64{"version": conflict.Actual})
		return
	}

	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeBoardNotFound, errors.ErrCodeNotFound, errors.ErrCodeRoomNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPatch, errors.ErrCodeInvalidElement:
		status = http.StatusBadRequest
	case errors.ErrCodeLocked:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
