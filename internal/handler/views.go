package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/service"
)

// PageHandler serves the signed-in HTML pages and the public share page.
//
// Form posts follow post/redirect/get: a successful POST answers 303 to the
// page that shows the result, a rejected one re-renders the form with the
// message and the values the user typed.
type PageHandler struct {
	pages     *Pages
	summaries *service.SummaryService
	profiles  *service.ProfileService
	logger    *slog.Logger
}

func NewPageHandler(pages *Pages, summaries *service.SummaryService, profiles *service.ProfileService, logger *slog.Logger) *PageHandler {
	return &PageHandler{pages: pages, summaries: summaries, profiles: profiles, logger: logger}
}

// HandleHome sends everyone to the dashboard; RequirePageAuth takes care of
// the anonymous ones.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HTTP: GET /dashboard
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	headers, err := h.summaries.List(r.Context(), user.ID, 0, 0)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "dashboard", pageData{Title: "Dashboard", User: user, Summaries: headers})
}

// HTTP: GET /summaries/new
func (h *PageHandler) HandleNewSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	h.pages.render(w, http.StatusOK, "new", pageData{Title: "New summary", User: user})
}

// HandleCreateSummary creates a summary from the form and generates its
// report in the same request.
//
// HTTP: POST /summaries
func (h *PageHandler) HandleCreateSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	if err := r.ParseForm(); err != nil {
		h.pages.render(w, http.StatusBadRequest, "new", pageData{Title: "New summary", User: user, Error: "invalid form submission"})
		return
	}
	fields := model.SummaryFields{
		CandidateName:  r.PostForm.Get("candidateName"),
		RoleTitle:      r.PostForm.Get("roleTitle"),
		CompanyName:    r.PostForm.Get("companyName"),
		JobDescription: r.PostForm.Get("jobDescription"),
		HMNotes:        r.PostForm.Get("hmNotes"),
		RecruiterNotes: r.PostForm.Get("recruiterNotes"),
	}

	summary, err := h.summaries.CreateAndGenerate(r.Context(), user.ID, fields)
	switch {
	case err == nil, summary != nil:
		// A stored summary whose generation failed shows its error on the
		// detail page.
		http.Redirect(w, r, "/summaries/"+summary.ID, http.StatusSeeOther)
	case errors.Is(err, apperror.ErrValidation):
		h.pages.render(w, http.StatusBadRequest, "new", pageData{
			Title: "New summary", User: user, Fields: fields, Error: userMessage(err),
		})
	default:
		h.pages.renderError(w, r, err)
	}
}

// HTTP: GET /summaries/{id}
func (h *PageHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	summary, err := h.summaries.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "detail", h.detailData(user, summary, ""))
}

// HTTP: POST /summaries/{id}/generate
func (h *PageHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	id := chi.URLParam(r, "id")

	summary, err := h.summaries.Generate(r.Context(), user.ID, id)
	switch {
	case err == nil, summary != nil:
		http.Redirect(w, r, "/summaries/"+summary.ID, http.StatusSeeOther)
	case errors.Is(err, apperror.ErrValidation):
		current, getErr := h.summaries.Get(r.Context(), user.ID, id)
		if getErr != nil {
			h.pages.renderError(w, r, getErr)
			return
		}
		h.pages.render(w, http.StatusBadRequest, "detail", h.detailData(user, current, userMessage(err)))
	default:
		h.pages.renderError(w, r, err)
	}
}

// HTTP: POST /summaries/{id}/share
func (h *PageHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	id := chi.URLParam(r, "id")

	if _, err := h.summaries.Share(r.Context(), user.ID, id); err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			h.pages.renderError(w, r, err)
			return
		}
		current, getErr := h.summaries.Get(r.Context(), user.ID, id)
		if getErr != nil {
			h.pages.renderError(w, r, getErr)
			return
		}
		h.pages.render(w, http.StatusBadRequest, "detail", h.detailData(user, current, userMessage(err)))
		return
	}
	http.Redirect(w, r, "/summaries/"+id, http.StatusSeeOther)
}

func (h *PageHandler) detailData(user *model.User, s *model.Summary, errMsg string) pageData {
	data := pageData{Title: s.CandidateName, User: user, Summary: s, Error: errMsg}
	if s.ShareToken != "" {
		data.ShareURL = h.summaries.ShareURL(s.ShareToken)
	}
	return data
}

// HandleShared is the public, read-only view of a shared report.
//
// HTTP: GET /share/{token}
func (h *PageHandler) HandleShared(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summaries.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Robots-Tag", "noindex")
	user, _ := userFrom(r)
	h.pages.render(w, http.StatusOK, "share", pageData{
		Title:   summary.CandidateName,
		User:    user,
		Summary: summary,
	})
}

// HTTP: GET /settings
func (h *PageHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	profile, err := h.profiles.Get(r.Context(), *user)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	data := pageData{Title: "Settings", User: user, Profile: profile}
	if r.URL.Query().Get("saved") == "1" {
		data.Notice = "Settings saved."
	}
	h.pages.render(w, http.StatusOK, "settings", data)
}

// HTTP: POST /settings
func (h *PageHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r)
	if err := r.ParseForm(); err != nil {
		h.pages.renderError(w, r, apperror.ValidationFailed("form", "invalid form submission"))
		return
	}
	fullName := r.PostForm.Get("fullName")
	avatarURL := r.PostForm.Get("avatarUrl")

	if _, err := h.profiles.Update(r.Context(), *user, fullName, avatarURL); err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			h.pages.renderError(w, r, err)
			return
		}
		// Re-show what the user typed next to the stored email.
		profile, getErr := h.profiles.Get(r.Context(), *user)
		if getErr != nil {
			h.pages.renderError(w, r, getErr)
			return
		}
		profile.FullName = fullName
		profile.AvatarURL = avatarURL
		h.pages.render(w, http.StatusBadRequest, "settings", pageData{
			Title: "Settings", User: user, Profile: profile, Error: userMessage(err),
		})
		return
	}
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}
