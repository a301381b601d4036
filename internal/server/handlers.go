package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-formengine/internal/session"
	"github.com/goliatone/go-formengine/internal/snapshot"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/navigation"
	"github.com/goliatone/go-formengine/pkg/options"
	"github.com/goliatone/go-formengine/pkg/orchestrator"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/schema/loader"
	"github.com/goliatone/go-formengine/pkg/store"
)

type formView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PageCount int    `json:"pageCount"`
}

// sessionView is what the session routes return.
type sessionView struct {
	ID           string              `json:"id"`
	FormID       string              `json:"formId"`
	Title        string              `json:"title"`
	Page         int                 `json:"page"`
	PageTitle    string              `json:"pageTitle"`
	PageCount    int                 `json:"pageCount"`
	Visited      []int               `json:"visited"`
	MaxValidated int                 `json:"maxValidated"`
	Values       map[string]any      `json:"values"`
	Errors       map[string][]string `json:"errors"`
}

type valueRequest struct {
	Value any `json:"value"`
}

func (s *Server) view(sess *session.Session, e *engine.Engine, nav *navigation.Navigator) sessionView {
	v := sessionView{
		ID:           sess.ID,
		FormID:       sess.FormID,
		Title:        s.forms[sess.FormID].Title,
		Page:         nav.Current(),
		PageCount:    e.PageCount(),
		Visited:      nav.VisitedPages(),
		MaxValidated: nav.MaxValidatedIndex(),
		Values:       e.Values(),
		Errors:       touchedErrors(e),
	}
	if pages := e.Pages(); v.Page < len(pages) {
		v.PageTitle = pages[v.Page].Title
	}
	return v
}

// touchedErrors returns the messages of fields the user has already been
// shown errors for.
func touchedErrors(e *engine.Engine) map[string][]string {
	var keys []string
	for _, key := range e.Keys() {
		if field, ok := e.Field(key); ok && field.Touched {
			keys = append(keys, key)
		}
	}
	return e.Errors(keys)
}

// lookup resolves the {id} URL parameter. It writes the error response
// itself and returns false when the session is gone.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
		return nil, false
	}
	return sess, true
}

// hookError carries a rejected hook's payload mapped onto the session's
// field keys. The mapping needs the engine, so it is built under the
// session lock.
type hookError struct {
	err     error
	mapping render.ErrorMapping
}

func (h *hookError) Error() string { return h.err.Error() }
func (h *hookError) Unwrap() error { return h.err }

// mapHookError attaches the field mapping when err carries hook field
// errors and returns err unchanged otherwise.
func mapHookError(e *engine.Engine, err error) error {
	var fe navigation.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	return &hookError{err: err, mapping: render.MapErrorPayload(e.Keys(), fe)}
}

type hookFailedResponse struct {
	Error      string              `json:"error"`
	Code       string              `json:"code"`
	Fields     map[string][]string `json:"fields,omitempty"`
	FormErrors []string            `json:"formErrors,omitempty"`
}

// engineError maps engine errors onto HTTP responses.
func (s *Server) engineError(w http.ResponseWriter, err error) {
	var he *hookError
	if errors.As(err, &he) {
		s.writeJSON(w, http.StatusUnprocessableEntity, hookFailedResponse{
			Error:      err.Error(),
			Code:       "HOOK_FAILED",
			Fields:     he.mapping.Fields,
			FormErrors: he.mapping.Form,
		})
		return
	}
	switch {
	case errors.Is(err, store.ErrUnknownField):
		s.writeError(w, http.StatusNotFound, "UNKNOWN_FIELD", err.Error())
	case errors.Is(err, engine.ErrDerivedField):
		s.writeError(w, http.StatusConflict, "DERIVED_FIELD", err.Error())
	case errors.Is(err, engine.ErrNotList):
		s.writeError(w, http.StatusConflict, "NOT_A_LIST", err.Error())
	case errors.Is(err, orchestrator.ErrPageOutOfRange), errors.Is(err, navigation.ErrNotVisited):
		s.writeError(w, http.StatusBadRequest, "INVALID_PAGE", err.Error())
	case errors.Is(err, navigation.ErrNoNextPage), errors.Is(err, navigation.ErrNoPreviousPage):
		s.writeError(w, http.StatusConflict, "NO_PAGE", err.Error())
	case errors.Is(err, navigation.ErrHookFailed):
		s.writeError(w, http.StatusUnprocessableEntity, "HOOK_FAILED", err.Error())
	case errors.Is(err, engine.ErrUnsettled), errors.Is(err, store.ErrCascadeTooDeep):
		s.writeError(w, http.StatusUnprocessableEntity, "UNSETTLED", err.Error())
	default:
		s.logger.Error("server: internal error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func (s *Server) listForms(w http.ResponseWriter, _ *http.Request) {
	out := make([]formView, 0, len(s.forms))
	for _, id := range loader.IDs(s.forms) {
		form := s.forms[id]
		out = append(out, formView{ID: id, Title: form.Title, PageCount: len(form.Pages)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchOptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil {
		limit = 0
	}
	results, err := s.options.Search(chi.URLParam(r, "name"), query.Get("q"), limit, options.DefaultSearchConfig())
	if err != nil {
		s.writeError(w, http.StatusNotFound, "OPTIONS_NOT_FOUND", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": results})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FormID string `json:"formId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	form, ok := s.forms[req.FormID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "FORM_NOT_FOUND", "unknown form: "+req.FormID)
		return
	}
	e, err := s.newEngine(form)
	if err != nil {
		s.engineError(w, err)
		return
	}

	sess := s.sessions.Create(form.ID, e, s.navOptions()...)
	s.metrics.SessionCreated(form.ID)
	s.metrics.SetActiveSessions(s.sessions.Len())
	s.logger.Info("server: session created", "session", sess.ID, "formId", form.ID)

	var view sessionView
	_ = sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		view = s.view(sess, e, nav)
		return nil
	})
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var view sessionView
	_ = sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		view = s.view(sess, e, nav)
		return nil
	})
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.sessions.Remove(sess.ID)
	s.metrics.SetActiveSessions(s.sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

// edit applies fn to the session engine and answers with the new view.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, fn func(e *engine.Engine, key string, value any) error) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	key := chi.URLParam(r, "key")

	var view sessionView
	err := sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		if err := fn(e, key, req.Value); err != nil {
			return err
		}
		view = s.view(sess, e, nav)
		return nil
	})
	s.metrics.RecordEdit(sess.FormID, err)
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) setField(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, (*engine.Engine).SetValue)
}

func (s *Server) toggleField(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, (*engine.Engine).ToggleCheckboxValue)
}

type validateResponse struct {
	Result orchestrator.Result `json:"result"`
	Errors map[string][]string `json:"errors"`
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Page *int `json:"page"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	var resp validateResponse
	err := sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		page := nav.Current()
		if req.Page != nil {
			page = *req.Page
		}
		res, err := e.Validate(page)
		if err != nil {
			return err
		}
		resp = validateResponse{Result: res, Errors: e.Errors(res.InvalidKeys)}
		return nil
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.metrics.RecordValidation(sess.FormID, resp.Result.IsValid)
	s.writeJSON(w, http.StatusOK, resp)
}

type stepResponse struct {
	Step    navigation.Step     `json:"step"`
	Errors  map[string][]string `json:"errors"`
	Session sessionView         `json:"session"`
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var resp stepResponse
	err := sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		step, err := nav.Next(r.Context())
		if err != nil {
			return mapHookError(e, err)
		}
		resp = stepResponse{
			Step:    step,
			Errors:  e.Errors(step.Result.InvalidKeys),
			Session: s.view(sess, e, nav),
		}
		return nil
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.metrics.RecordValidation(sess.FormID, resp.Step.Result.IsValid)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) previous(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, func(nav *navigation.Navigator, _ int) error {
		_, err := nav.Previous()
		return err
	})
}

func (s *Server) goTo(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*navigation.Navigator).GoTo)
}

// move runs a navigation that does not validate. The optional body names
// the target page.
func (s *Server) move(w http.ResponseWriter, r *http.Request, fn func(nav *navigation.Navigator, page int) error) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	var view sessionView
	err := sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		if err := fn(nav, req.Page); err != nil {
			return err
		}
		view = s.view(sess, e, nav)
		return nil
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type submitResponse struct {
	Result orchestrator.Result `json:"result"`
	Errors map[string][]string `json:"errors,omitempty"`
	Values map[string]any      `json:"values,omitempty"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var resp submitResponse
	err := sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		sub, err := nav.Submit(r.Context())
		if err != nil {
			return mapHookError(e, err)
		}
		resp = submitResponse{Result: sub.Result, Values: sub.Values}
		if !sub.Result.IsValid {
			resp.Errors = e.Errors(sub.Result.InvalidKeys)
		}
		return nil
	})
	switch {
	case errors.Is(err, navigation.ErrHookFailed):
		s.metrics.RecordSubmission(sess.FormID, "hook_failed")
	case err == nil && !resp.Result.IsValid:
		s.metrics.RecordSubmission(sess.FormID, "invalid")
		s.writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	case err == nil:
		s.metrics.RecordSubmission(sess.FormID, "accepted")
		s.logger.Info("server: form submitted", "session", sess.ID, "formId", sess.FormID)
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	s.engineError(w, err)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	renderer, err := s.renderers.Get(format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "UNKNOWN_FORMAT", err.Error())
		return
	}

	var body []byte
	err = sess.Do(func(e *engine.Engine, _ *navigation.Navigator) error {
		var renderErr error
		body, renderErr = renderer.Render(r.Context(), render.Summary(e), render.RenderOptions{
			Errors: touchedErrors(e),
		})
		return renderErr
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, http.StatusNotImplemented, "SNAPSHOTS_DISABLED", "snapshots are not configured")
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	rec := snapshot.Record{ID: req.ID, FormID: sess.FormID}
	_ = sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		rec.Page = nav.Current()
		rec.Answers = e.Snapshot()
		return nil
	})
	saved, err := s.snapshots.Save(r.Context(), rec)
	s.metrics.RecordSnapshot("save", err)
	if err != nil {
		s.logger.Error("server: save snapshot", "session", sess.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "SNAPSHOT_FAILED", "could not save snapshot")
		return
	}
	s.writeJSON(w, http.StatusCreated, saved)
}

type restoreResponse struct {
	Skipped []string    `json:"skipped"`
	Session sessionView `json:"session"`
}

func (s *Server) restoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, http.StatusNotImplemented, "SNAPSHOTS_DISABLED", "snapshots are not configured")
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		SnapshotID string `json:"snapshotId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	rec, err := s.snapshots.Load(r.Context(), req.SnapshotID)
	if err != nil {
		s.metrics.RecordSnapshot("restore", err)
		if errors.Is(err, snapshot.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
			return
		}
		s.engineError(w, err)
		return
	}
	if rec.FormID != sess.FormID {
		s.writeError(w, http.StatusConflict, "FORM_MISMATCH", "snapshot belongs to form "+rec.FormID)
		return
	}
	e, err := s.newEngine(s.forms[sess.FormID])
	if err != nil {
		s.engineError(w, err)
		return
	}
	skipped, err := e.Restore(rec.Answers)
	s.metrics.RecordSnapshot("restore", err)
	if err != nil {
		s.logger.Warn("server: restore had errors", "session", sess.ID, "snapshot", rec.ID, "error", err)
	}

	resp := restoreResponse{Skipped: skipped}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	_ = sess.Do(func(_ *engine.Engine, _ *navigation.Navigator) error {
		nav := sess.Replace(e, s.navOptions(navigation.WithStartPage(rec.Page))...)
		resp.Session = s.view(sess, e, nav)
		return nil
	})
	s.writeJSON(w, http.StatusOK, resp)
}
