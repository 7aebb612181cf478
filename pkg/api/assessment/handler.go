// Package assessment exposes the assessment pipeline, report history, login
// trail and import seed over HTTP.
package assessment

import (
	"net"
	"net/http"

	"finpulse/pkg/api/render"
	"finpulse/pkg/core/ingest"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/store"
	"finpulse/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes bounds a seed upload.
const MaxUploadBytes = 10 << 20

type Handler struct {
	Pipeline *pipeline.Orchestrator
	Store    store.HistoryStore
	log      *logrus.Entry
}

func NewHandler(p *pipeline.Orchestrator, s store.HistoryStore) *Handler {
	return &Handler{Pipeline: p, Store: s, log: logging.For("api.assessment")}
}

// Routes mounts the per-user endpoints under /users/{userID}.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/assessments", h.Submit)
	r.Post("/assessments/stream", h.Stream)
	r.Get("/assessments/current", h.Current)
	r.Get("/reports", h.Reports)
	r.Post("/reports/{reportID}/select", h.Select)
	r.Get("/logins", h.Logins)
	r.Post("/logins", h.RecordLogin)
	r.Post("/seed", h.UploadSeed)
	r.Get("/seed", h.Seed)
	r.Delete("/", h.RemoveUser)
}

func userID(r *http.Request) string {
	return chi.URLParam(r, "userID")
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var data models.FinancialData
	if err := render.Decode(r, &data); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	report, err := h.Pipeline.Submit(r.Context(), userID(r), data, nil)
	if err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusOK, report)
}

// Stream runs the same pipeline as Submit and reports progress as SSE:
// progress, state and retry events, then one result or error event.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	var data models.FinancialData
	if err := render.Decode(r, &data); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	stream, err := render.NewEventStream(w)
	if err != nil {
		render.Error(w, http.StatusInternalServerError, "fatal", err.Error())
		return
	}

	sink := func(e pipeline.Event) {
		if err := stream.Send(string(e.Type), e); err != nil {
			h.log.WithError(err).Debug("stream client gone")
		}
	}
	report, err := h.Pipeline.Submit(r.Context(), userID(r), data, sink)
	if err != nil {
		_ = stream.Send("error", render.FailureBody(err))
		return
	}
	_ = stream.Send("result", report)
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, h.Pipeline.Current(userID(r)))
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	report, err := h.Pipeline.SelectReport(r.Context(), userID(r), chi.URLParam(r, "reportID"))
	if err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusOK, report)
}

func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Store.Reports(r.Context(), userID(r))
	if err != nil {
		render.Failure(w, err)
		return
	}
	if reports == nil {
		reports = []models.SavedReport{}
	}
	render.JSON(w, http.StatusOK, reports)
}

func (h *Handler) Logins(w http.ResponseWriter, r *http.Request) {
	logins, err := h.Store.Logins(r.Context(), userID(r))
	if err != nil {
		render.Failure(w, err)
		return
	}
	if logins == nil {
		logins = []models.LoginSession{}
	}
	render.JSON(w, http.StatusOK, logins)
}

type LoginRequest struct {
	Status models.LoginStatus `json:"status"`
	IP     string             `json:"ip,omitempty"`
}

func (h *Handler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.IP == "" {
		req.IP = clientIP(r)
	}
	logins, err := h.Pipeline.RecordLogin(r.Context(), userID(r), req.Status, req.IP)
	if err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusCreated, logins)
}

// clientIP strips the port RemoteAddr carries when no proxy header set it.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Pipeline.RemoveUser(r.Context(), userID(r)); err != nil {
		render.Failure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SeedResponse struct {
	Import *ingest.Result       `json:"import,omitempty"`
	Data   models.FinancialData `json:"data"`
}

// UploadSeed imports a statement file (multipart field "file") as the
// user's pre-filled form.
func (h *Handler) UploadSeed(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "invalid multipart upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer file.Close()

	res, err := ingest.Import(header.Filename, file)
	if err != nil {
		h.log.WithError(err).WithField("file", header.Filename).Warn("seed import failed")
		render.Error(w, http.StatusUnprocessableEntity, "import", err.Error())
		return
	}
	id := userID(r)
	if err := h.Pipeline.SetSeed(id, res.Patch); err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusOK, SeedResponse{Import: &res, Data: h.Pipeline.Seed(id)})
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, SeedResponse{Data: h.Pipeline.Seed(userID(r))})
}
