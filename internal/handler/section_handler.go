package handler

import (
	"encoding/json"
	"net/http"

	"profilevault/internal/auth"
	"profilevault/internal/service"
)

type SectionHandler struct {
	sectionService *service.SectionService
}

func NewSectionHandler(sectionService *service.SectionService) *SectionHandler {
	return &SectionHandler{
		sectionService: sectionService,
	}
}

type deleteSectionsRequest struct {
	// Для админского удаления чужих секций; пусто — секции самого субъекта
	UserID     string  `json:"user_id,omitempty"`
	SectionIDs []int64 `json:"section_ids"`
}

// DeleteSections удаляет секции вместе с файлами и списывает байты.
func (h *SectionHandler) DeleteSections(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req deleteSectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sectionService.DeleteSections(r.Context(), p, req.UserID, req.SectionIDs); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
