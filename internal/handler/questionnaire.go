package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	appI18n "github.com/pavelanni/lsocheck/internal/i18n"
	"github.com/pavelanni/lsocheck/internal/metrics"
	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// stateResponse is the questionnaire state sent after every call.
type stateResponse struct {
	questionnaire.Snapshot
	ReasonTexts   []string       `json:"reason_texts,omitempty"`
	DocumentTexts []string       `json:"document_texts,omitempty"`
	Contact       *model.Contact `json:"contact,omitempty"`
	SubmissionID  string         `json:"submission_id,omitempty"`
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, s *session) {
	resp := stateResponse{
		Snapshot:     s.engine.Snapshot(),
		Contact:      s.contact,
		SubmissionID: s.submissionID,
	}
	if resp.Verdict != nil {
		resp.ReasonTexts = appI18n.ReasonTexts(r.Context(), resp.Verdict.Reasons)
	}
	if len(resp.Documents) > 0 {
		resp.DocumentTexts = appI18n.DocumentTexts(r.Context(), resp.Documents)
	}
	writeJSON(w, http.StatusOK, resp)
}

// withSession resolves the visitor's session from the cookie and holds its
// lock for the duration of fn.
func (h *Handler) withSession(fn func(http.ResponseWriter, *http.Request, *session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.lookupSession(r)
		if !ok {
			writeError(w, http.StatusNotFound, "no questionnaire session")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(w, r, s)
	}
}

func (h *Handler) lookupSession(r *http.Request) (*session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return h.sessions.get(cookie.Value)
}

// handleStart opens a fresh session, replacing any previous one.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		h.sessions.remove(cookie.Value)
	}
	id, s := h.sessions.create()
	metrics.SetActiveSessions(h.sessions.len())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	slog.Debug("questionnaire session started", "session", id)

	s.mu.Lock()
	defer s.mu.Unlock()
	h.writeState(w, r, s)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request, s *session) {
	h.writeState(w, r, s)
}

func (h *Handler) handleSetContact(w http.ResponseWriter, r *http.Request, s *session) {
	var c model.Contact
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, appI18n.Td(r.Context(), "ContactInvalid", map[string]any{"Error": err.Error()}))
		return
	}
	c = c.Normalize()
	s.contact = &c
	h.writeState(w, r, s)
}

type answerRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request, s *session) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := s.engine.CurrentQuestion()
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if req.Value != "" && !q.HasChoice(req.Value) {
		writeError(w, http.StatusBadRequest, "value is not one of the question's choices")
		return
	}
	if err := s.engine.RecordAnswer(req.Value); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.writeState(w, r, s)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request, s *session) {
	if err := s.engine.Advance(); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.maybeSubmit(s)
	h.writeState(w, r, s)
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request, s *session) {
	s.engine.Retreat()
	h.writeState(w, r, s)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request, s *session) {
	s.engine.Reset()
	s.submissionID = ""
	h.writeState(w, r, s)
}

func (h *Handler) handleResetTrack(w http.ResponseWriter, r *http.Request, s *session) {
	s.engine.ResetTrack()
	h.writeState(w, r, s)
}

// maybeSubmit hands the session to the dispatcher the first time it
// reaches a terminal stage. The response never waits for delivery.
func (h *Handler) maybeSubmit(s *session) {
	if !s.engine.Stage().Terminal() || s.submissionID != "" {
		return
	}
	sub := model.NewSubmission(uuid.NewString(), s.engine, s.contact)
	s.submissionID = sub.ID
	metrics.QuestionnaireCompleted(s.engine.Verdict())
	slog.Info("questionnaire completed", "submission", sub.ID, "stage", sub.Stage, "eligible", sub.Eligible, "reasons", sub.Reasons)
	if h.dispatcher != nil {
		h.dispatcher.DispatchAsync(sub, nil)
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *questionnaire.ValidationError
	var oe *questionnaire.OutOfRangeError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      appI18n.T(r.Context(), "AnswerRequired"),
			QuestionID: ve.QuestionID,
		})
	case errors.As(err, &oe):
		writeError(w, http.StatusConflict, oe.Error())
	default:
		slog.Error("questionnaire error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
