package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/service"
)

// SummaryHandler is the JSON API for summaries. Every route except
// HandleGetShared runs behind RequireAuth, and every service call is scoped
// to the signed-in owner.
type SummaryHandler struct {
	summaries *service.SummaryService
	logger    *slog.Logger
}

func NewSummaryHandler(summaries *service.SummaryService, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{summaries: summaries, logger: logger}
}

// HandleList returns the owner's summaries, newest first.
//
// HTTP: GET /api/summaries?limit=20&offset=0
func (h *SummaryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	headers, err := h.summaries.List(r.Context(), owner, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

// HandleCreate stores a draft without generating.
//
// HTTP: POST /api/summaries
// REQUEST BODY: {"candidateName": "...", "roleTitle": "...", "companyName": "...", ...}
func (h *SummaryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var fields model.SummaryFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.Create(r.Context(), owner, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// HandleCreateAndGenerate stores a summary and generates its report in one
// call.
//
// HTTP: POST /api/summaries/generate
//
// If generation fails after the record was stored the response is 502 and
// carries the failed summary.
func (h *SummaryHandler) HandleCreateAndGenerate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var fields model.SummaryFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.CreateAndGenerate(r.Context(), owner, fields)
	if err != nil {
		writeErrorWith(w, err, summary)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// HandleGet returns one owned summary.
//
// HTTP: GET /api/summaries/{id}
func (h *SummaryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleUpdate applies an inline edit. Only the fields present in the body
// change.
//
// HTTP: PATCH /api/summaries/{id}
// REQUEST BODY: {"recruiterNotes": "..."}
func (h *SummaryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var patch model.SummaryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.Update(r.Context(), owner, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleGenerate (re)generates the report of an owned summary.
//
// HTTP: POST /api/summaries/{id}/generate
func (h *SummaryHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.Generate(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeErrorWith(w, err, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type shareResponse struct {
	URL string `json:"url"`
}

// HandleShare returns the public link, creating it on first use.
//
// HTTP: POST /api/summaries/{id}/share
func (h *SummaryHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	shareURL, err := h.summaries.Share(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: shareURL})
}

// sharedSummary is the public projection of a shared summary. Owner, notes
// and share token are left out.
type sharedSummary struct {
	CandidateName string        `json:"candidateName"`
	RoleTitle     string        `json:"roleTitle"`
	CompanyName   string        `json:"companyName"`
	Report        *model.Report `json:"report"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HandleGetShared is the unauthenticated read of a shared report.
//
// HTTP: GET /api/share/{token}
func (h *SummaryHandler) HandleGetShared(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summaries.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sharedSummary{
		CandidateName: summary.CandidateName,
		RoleTitle:     summary.RoleTitle,
		CompanyName:   summary.CompanyName,
		Report:        summary.Report,
		UpdatedAt:     summary.UpdatedAt,
	})
}
