// Package control exposes the session manager over HTTP for an external
// operator UI.
package control

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chatpilot/chatpilot/pkg/logger"
	"github.com/chatpilot/chatpilot/pkg/session"
)

// Sessions is the supervisory surface the server drives.
type Sessions interface {
	Start(ctx context.Context, opts session.Options) (session.Handle, error)
	Stop(h session.Handle) error
	Get(h session.Handle) (session.Info, error)
	List() []session.Info
	TailLog(h session.Handle) ([]string, error)
	Follow(ctx context.Context, h session.Handle) (<-chan string, error)
}

// ContactDirectory lists names for the contact picker.
type ContactDirectory interface {
	Filter(query string) []string
}

// Defaults fills fields a start request leaves empty.
type Defaults struct {
	OperatorName   string
	Model          string
	WordsPerMinute int
	ActiveHours    string
}

type handlers struct {
	sessions Sessions
	contacts ContactDirectory
	defaults Defaults
	upgrader websocket.Upgrader
}

func NewRouter(sessions Sessions, directory ContactDirectory, defaults Defaults) http.Handler {
	h := &handlers{
		sessions: sessions,
		contacts: directory,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", h.handleList)
	mux.HandleFunc("POST /sessions", h.handleStart)
	mux.HandleFunc("GET /sessions/{id}", h.handleGet)
	mux.HandleFunc("DELETE /sessions/{id}", h.handleStop)
	mux.HandleFunc("GET /sessions/{id}/log", h.handleLog)
	mux.HandleFunc("GET /sessions/{id}/log/ws", h.handleLogStream)
	mux.HandleFunc("GET /contacts", h.handleContacts)
	return mux
}

func handleOf(r *http.Request) session.Handle {
	return session.Handle(r.PathValue("id"))
}

func (h *handlers) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.List()})
}

func (h *handlers) handleStart(w http.ResponseWriter, r *http.Request) {
	var opts session.Options
	if err := decodeJSONBody(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
		return
	}
	h.applyDefaults(&opts)
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
		return
	}

	handle, err := h.sessions.Start(r.Context(), opts)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	info, err := h.sessions.Get(handle)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	logger.InfoCF("control", "Session started via API", map[string]any{
		"session": string(handle),
		"remote":  r.RemoteAddr,
	})
	writeJSON(w, http.StatusCreated, info)
}

func (h *handlers) applyDefaults(opts *session.Options) {
	if opts.OperatorName == "" {
		opts.OperatorName = h.defaults.OperatorName
	}
	if opts.Model == "" {
		opts.Model = h.defaults.Model
	}
	if opts.WordsPerMinute == 0 {
		opts.WordsPerMinute = h.defaults.WordsPerMinute
	}
	if opts.ActiveHours == "" {
		opts.ActiveHours = h.defaults.ActiveHours
	}
}

func (h *handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.sessions.Get(handleOf(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Stop(handleOf(r)); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) handleLog(w http.ResponseWriter, r *http.Request) {
	lines, err := h.sessions.TailLog(handleOf(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (h *handlers) handleContacts(w http.ResponseWriter, r *http.Request) {
	if h.contacts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"contacts": []string{}})
		return
	}
	names := h.contacts.Filter(r.URL.Query().Get("q"))
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": names})
}
