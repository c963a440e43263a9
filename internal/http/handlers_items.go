package http

import (
	"errors"
	"net/http"

	"shoplist/internal/core"
	"shoplist/internal/log"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.List(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	item, err := s.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	item, err := req.newItem()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	id, err := s.items.Create(r.Context(), item)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/items/"+itoa(id))
	writeJSON(w, http.StatusCreated, toItemResponse(created))
}

// handleUpdateItem overlays the request onto the stored item. A missing item
// is a no-op answered with 204.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	current, err := s.items.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := req.apply(current)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.items.Update(r.Context(), updated); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.writeItemOrNoContent(w, r, id, log.OpUpdate)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.items.Delete(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllItems(w http.ResponseWriter, r *http.Request) {
	if err := s.items.DeleteAll(r.Context()); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchaseItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpPurchase, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpPurchase, err)
		return
	}
	price, err := parseActual("actual_price", req.ActualPrice)
	if err != nil {
		writeError(w, r, log.OpPurchase, err)
		return
	}
	if err := s.items.MarkPurchased(r.Context(), id, price); err != nil {
		writeError(w, r, log.OpPurchase, err)
		return
	}
	item, err := s.items.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, r, log.OpPurchase, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogItemPurchased(r.Context(), item.ID, item.Name, price.Cents)
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	q := sanitizeInput(r.URL.Query().Get("q"))
	items, err := s.items.SearchUnpurchased(r.Context(), q)
	if err != nil {
		writeError(w, r, log.OpSearch, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

// writeItemOrNoContent answers a mutation with the item's current state, or
// 204 when the item is gone.
func (s *Server) writeItemOrNoContent(w http.ResponseWriter, r *http.Request, id int64, op string) {
	item, err := s.items.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}
