package http

import (
	"net/http"

	"shoplist/internal/core"
	"shoplist/internal/log"
)

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.labels.List(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]labelResponse, 0, len(labels))
	for _, l := range labels {
		out = append(out, toLabelResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	label, ok := s.lookupLabel(w, r, log.OpRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toLabelResponse(label))
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var name, color string
	if req.Name != nil {
		name = sanitizeInput(*req.Name)
	}
	if req.Color != nil {
		color = sanitizeInput(*req.Color)
	}
	label, err := s.labels.Create(r.Context(), name, color)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/labels/"+itoa(label.ID))
	writeJSON(w, http.StatusCreated, toLabelResponse(label))
}

// handleUpdateLabel renames and recolors a label; omitted fields keep their
// current value. Item references follow the rename.
func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	label, ok := s.lookupLabel(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req labelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	name, color := label.Name, label.Color
	if req.Name != nil {
		name = sanitizeInput(*req.Name)
	}
	if req.Color != nil {
		color = sanitizeInput(*req.Color)
	}
	updated, err := s.labels.Update(r.Context(), label, name, color)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabelResponse(updated))
}

// handleDeleteLabel removes the label and every item carrying it.
func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	label, ok := s.lookupLabel(w, r, log.OpDelete)
	if !ok {
		return
	}
	removed, err := s.labels.Delete(r.Context(), label)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed_items": removed})
}

func (s *Server) lookupLabel(w http.ResponseWriter, r *http.Request, op string) (core.Label, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, op, err)
		return core.Label{}, false
	}
	label, err := s.labels.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, op, err)
		return core.Label{}, false
	}
	return label, true
}
