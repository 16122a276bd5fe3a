package api

import (
	"fmt"
	"net/http"
)

// rowBody is the request shape for row create/update. An id on create is
// honored as a client-supplied suffix.
type rowBody struct {
	ID   string         `json:"id,omitempty"`
	Data map[string]any `json:"data"`
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	token, limit, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ids, next, err := h.rows.ListIDs(r.Context(), r.PathValue("owner"), r.PathValue("store"), token, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	resp := envelope{"keys": ids}
	if next != "" {
		resp["next"] = next
	}
	writeJSON(w, http.StatusOK, ok(resp))
}

func (h *Handler) createRow(w http.ResponseWriter, r *http.Request) {
	var body rowBody
	if err := readJSON(r, &body); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	row, err := h.rows.Create(r.Context(), r.PathValue("owner"), r.PathValue("store"), body.ID, body.Data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{"row": row}))
}

func (h *Handler) getRow(w http.ResponseWriter, r *http.Request) {
	row, err := h.rows.Get(r.Context(), r.PathValue("owner"), r.PathValue("store"), r.PathValue("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"row": row}))
}

func (h *Handler) updateRow(w http.ResponseWriter, r *http.Request) {
	var body rowBody
	if err := readJSON(r, &body); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	row, err := h.rows.Update(r.Context(), r.PathValue("owner"), r.PathValue("store"), r.PathValue("key"), body.Data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"row": row}))
}

func (h *Handler) deleteRow(w http.ResponseWriter, r *http.Request) {
	row, err := h.rows.Delete(r.Context(), r.PathValue("owner"), r.PathValue("store"), r.PathValue("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := envelope{}
	if row != nil {
		resp["row"] = row
	}
	writeJSON(w, http.StatusOK, ok(resp))
}
