package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	intake "github.com/goliatone/go-intake"
)

type valueRequest struct {
	Value any `json:"value"`
}

type appendRequest struct {
	Defaults map[string]any `json:"defaults"`
}

type appendResponse struct {
	ID   string      `json:"id"`
	View intake.View `json:"view"`
}

// HandleSections handles GET /sections.
func (h *Handler) HandleSections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Describe())
}

// HandleSchema handles GET /sections/{id}/schema.
func (h *Handler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.Schema(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleView handles GET /wizard.
func (h *Handler) HandleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wizard.View())
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(context.Context) error) {
	if err := move(r.Context()); err != nil {
		h.logger.InfoContext(r.Context(), "navigation refused", "current", h.wizard.Current(), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wizard.View())
}

// HandleSelect handles POST /wizard/select/{id}.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.navigate(w, r, func(ctx context.Context) error { return h.wizard.Select(ctx, id) })
}

// HandleNext handles POST /wizard/next.
func (h *Handler) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.wizard.Next)
}

// HandlePrevious handles POST /wizard/previous.
func (h *Handler) HandlePrevious(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.wizard.Previous)
}

// HandleReset handles POST /wizard/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(context.Context) error { return h.wizard.Reset() })
}

// HandleSetField handles PUT /wizard/fields/{name}.
func (h *Handler) HandleSetField(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.wizard.SetField(chi.URLParam(r, "name"), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wizard.View())
}

// HandleAppendEntry handles POST /wizard/collections/{name}/entries. A full
// or switched-off collection answers 409.
func (h *Handler) HandleAppendEntry(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, ok, err := h.wizard.AppendEntry(chi.URLParam(r, "name"), req.Defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		view := h.wizard.View()
		if view.Full[chi.URLParam(r, "name")] {
			writeJSON(w, http.StatusConflict, errorBody{Error: "collection_full", Description: "collection is at its maximum size"})
			return
		}
		writeJSON(w, http.StatusConflict, errorBody{Error: "collection_closed", Description: "collection toggle is off"})
		return
	}
	writeJSON(w, http.StatusCreated, appendResponse{ID: id, View: h.wizard.View()})
}

// HandleRemoveEntry handles DELETE /wizard/collections/{name}/entries/{entryID}.
func (h *Handler) HandleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	removed, err := h.wizard.RemoveEntry(chi.URLParam(r, "name"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Description: "entry not found"})
		return
	}
	writeJSON(w, http.StatusOK, h.wizard.View())
}

// HandleSetEntryField handles PUT /wizard/collections/{name}/entries/{entryID}/fields/{field}.
func (h *Handler) HandleSetEntryField(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.wizard.SetEntryField(chi.URLParam(r, "name"), chi.URLParam(r, "entryID"), chi.URLParam(r, "field"), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wizard.View())
}

// HandleSave handles POST /wizard/save: 200 when written, 422 with field
// errors when the section is invalid, 503 when the store fails.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.wizard.Save(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "save failed", "section", h.wizard.Current(), "error", err)
		writeError(w, err)
		return
	}
	if !outcome.Saved {
		writeJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}
	h.logger.InfoContext(r.Context(), "section saved", "section", outcome.Section)
	writeJSON(w, http.StatusOK, outcome)
}

// HandleRecord handles GET /record.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	record, ok, err := h.wizard.Record(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Description: "no record saved yet"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HandleDeleteRecord handles DELETE /record.
func (h *Handler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.wizard.DeleteRecord(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReview handles GET /review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.wizard.Review(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}
