package http

import (
	"context"
	"fmt"
	"net/http"

	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/session"
)

// sessionFor resolves the caller's session from the X-Session-ID header or
// the session cookie, opening a new one when neither names a live session.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	sess := s.sessions.GetOrOpen(id)
	if sess.ID() != id {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Session opened", log.FieldSessionID, sess.ID())
	}
	w.Header().Set(sessionHeader, sess.ID())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return sess
}

// writeView waits for a view computed from the session's current filter.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx, cancel := context.WithTimeout(r.Context(), viewTimeout)
	defer cancel()

	want := sess.Filter()
	v, err := sess.Await(ctx, func(v session.View) bool { return v.Reflects(want) })
	if err != nil {
		writeError(w, r, log.OpRead, fmt.Errorf("await view for session %s: %w", sess.ID(), err))
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(sess.ID(), v))
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, s.sessionFor(w, r))
}

func (s *Server) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	mutate, err := req.mutation()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sess := s.sessionFor(w, r)
	mutate(sess)
	s.writeView(w, r, sess)
}

// mutation validates the request and returns the filter change it names.
func (req filterRequest) mutation() (func(*session.Session), error) {
	switch req.Action {
	case "toggle_label":
		label := sanitizeInput(req.Label)
		if label == "" {
			return nil, &core.ValidationError{Field: "label", Reason: "cannot be empty"}
		}
		return func(s *session.Session) { s.ToggleLabel(label) }, nil
	case "clear_labels":
		return (*session.Session).ClearLabels, nil
	case "set_mode":
		mode, err := core.ParseFilterMode(req.Mode)
		if err != nil {
			return nil, err
		}
		return func(s *session.Session) { s.SetMode(mode) }, nil
	case "set_show_purchased":
		if req.ShowPurchased == nil {
			return nil, &core.ValidationError{Field: "show_purchased", Reason: "is required"}
		}
		show := *req.ShowPurchased
		return func(s *session.Session) { s.SetShowPurchased(show) }, nil
	case "toggle_show_purchased":
		return (*session.Session).ToggleShowPurchased, nil
	case "replace":
		f := core.NewFilterState()
		if req.Mode != "" {
			mode, err := core.ParseFilterMode(req.Mode)
			if err != nil {
				return nil, err
			}
			f.Mode = mode
		}
		for _, l := range cleanLabels(req.Labels) {
			f.SelectedLabels[l] = struct{}{}
		}
		if req.ShowPurchased != nil {
			f.ShowPurchased = *req.ShowPurchased
		}
		return func(s *session.Session) { s.Replace(f) }, nil
	default:
		return nil, &core.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", req.Action)}
	}
}
