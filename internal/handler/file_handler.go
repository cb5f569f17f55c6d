package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"profilevault/internal/auth"
	"profilevault/internal/domain"
	"profilevault/internal/service"
)

const maxUploadSize = 256 * 1024 * 1024 // 256MB на форму загрузки

type FileHandler struct {
	fileService *service.FileService
}

func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

type uploadResponse struct {
	Files []domain.File `json:"files"`
}

type deleteFilesRequest struct {
	// Для админского удаления чужих файлов; пусто — счет самого субъекта
	UserID   string                `json:"user_id,omitempty"`
	Sections []domain.SectionFiles `json:"sections"`
}

// UploadFiles принимает multipart-форму с полями files и section_id.
func (h *FileHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	sectionID, err := strconv.ParseInt(r.FormValue("section_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid section_id", http.StatusBadRequest)
		return
	}

	files, err := h.fileService.UploadFiles(r.Context(), p, sectionID, r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Files: files})
}

// DeleteFiles удаляет файлы из перечисленных секций.
func (h *FileHandler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req deleteFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fileService.DeleteFilesFromSections(r.Context(), p, req.UserID, req.Sections); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSectionFiles отдает файлы одной секции.
func (h *FileHandler) GetSectionFiles(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sectionID, err := strconv.ParseInt(r.URL.Query().Get("section_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid section_id", http.StatusBadRequest)
		return
	}

	files, err := h.fileService.FilesBySection(r.Context(), p, sectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Files: files})
}
