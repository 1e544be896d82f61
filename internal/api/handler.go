// Package api serves the dataset shell over HTTP. Every request is a
// session command, so HTTP clients and the REPL share one ordered worker.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"taotie/internal/domain"
	"taotie/internal/ingest"
	"taotie/internal/middleware"
	tables "taotie/internal/render"
	"taotie/internal/session"
)

// DefaultHeadSize is the row count of head requests without ?n=.
const DefaultHeadSize = 5

// Submitter runs session commands. *session.Worker satisfies it.
type Submitter interface {
	Submit(ctx context.Context, cmd session.Command) (session.Reply, error)
}

// Handler implements the HTTP routes.
type Handler struct {
	worker Submitter
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(worker Submitter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{worker: worker, logger: logger}
}

// ConnectRequest is the body of POST /datasets.
type ConnectRequest struct {
	Conn  string `json:"conn"`
	Name  string `json:"name"`
	Table string `json:"table,omitempty"`
}

// SQLRequest is the body of POST /sql.
type SQLRequest struct {
	Query string `json:"query"`
}

// MessageResponse carries a command's text reply.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "ok"})
}

// ListDatasets handles GET /datasets.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, session.ListCmd{})
}

// ConnectDataset handles POST /datasets.
func (h *Handler) ConnectDataset(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, r, domain.ErrValidation("name is required"))
		return
	}
	conn, err := ingest.ParseConn(req.Conn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	h.run(w, r, session.ConnectCmd{Opts: domain.ConnectOpts{Conn: conn, Name: req.Name, Table: req.Table}})
}

// Schema handles GET /datasets/{name}/schema.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, session.SchemaCmd{Dataset: chi.URLParam(r, "name")})
}

// Head handles GET /datasets/{name}/head?n=.
func (h *Handler) Head(w http.ResponseWriter, r *http.Request) {
	size := DefaultHeadSize
	if v := r.URL.Query().Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, domain.ErrValidation("n must be a non-negative integer, got %q", v))
			return
		}
		size = n
	}
	h.run(w, r, session.HeadCmd{Dataset: chi.URLParam(r, "name"), Size: size})
}

// Describe handles GET /datasets/{name}/describe.
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, session.DescribeCmd{Dataset: chi.URLParam(r, "name")})
}

// SQL handles POST /sql.
func (h *Handler) SQL(w http.ResponseWriter, r *http.Request) {
	var req SQLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	h.run(w, r, session.SQLCmd{Query: req.Query})
}

// run submits cmd on behalf of r and writes the reply.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, cmd session.Command) {
	ctx := session.WithRequestID(r.Context(), middleware.RequestIDFromContext(r.Context()))
	reply, err := h.worker.Submit(ctx, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeReply(w, r, reply)
}

func (h *Handler) writeReply(w http.ResponseWriter, r *http.Request, reply session.Reply) {
	text := r.URL.Query().Get("format") == "text"

	switch {
	case reply.Table != nil && text:
		render.PlainText(w, r, tables.Format(reply.Table)+"\n")
	case reply.Table != nil:
		render.JSON(w, r, tables.NewPayload(reply.Table))
	case text:
		render.PlainText(w, r, reply.Message+"\n")
	default:
		render.JSON(w, r, MessageResponse{Message: reply.Message})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatusFromError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "request_id", middleware.RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{Code: code, Message: err.Error()})
}
