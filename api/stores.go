package api

import (
	"fmt"
	"net/http"

	"github.com/jacentio/stratum/store"
)

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	token, limit, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stores, next, err := h.catalog.List(r.Context(), r.PathValue("owner"), token, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stores == nil {
		stores = []*store.Store{}
	}
	resp := envelope{"stores": stores}
	if next != "" {
		resp["next"] = next
	}
	writeJSON(w, http.StatusOK, ok(resp))
}

func (h *Handler) createStore(w http.ResponseWriter, r *http.Request) {
	var def store.Definition
	if err := readJSON(r, &def); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	st, err := h.catalog.Create(r.Context(), r.PathValue("owner"), def)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{"store": st}))
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.catalog.Get(r.Context(), r.PathValue("owner"), r.PathValue("store"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"store": st}))
}

func (h *Handler) updateStore(w http.ResponseWriter, r *http.Request) {
	var upd store.Update
	if err := readJSON(r, &upd); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	st, err := h.catalog.Update(r.Context(), r.PathValue("owner"), r.PathValue("store"), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"store": st}))
}

func (h *Handler) deleteStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.catalog.Delete(r.Context(), r.PathValue("owner"), r.PathValue("store"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"store": st}))
}
