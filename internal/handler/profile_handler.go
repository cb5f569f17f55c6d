package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"profilevault/internal/auth"
	"profilevault/internal/domain"
	"profilevault/internal/preview"
	"profilevault/internal/service"
)

const maxPictureUploadSize = 20 * 1024 * 1024 // 20MB на форму с аватаром

type ProfileHandler struct {
	sectionService *service.SectionService
	pictureService *service.PictureService
	previewService *preview.Service
}

func NewProfileHandler(
	sectionService *service.SectionService,
	pictureService *service.PictureService,
	previewService *preview.Service,
) *ProfileHandler {
	return &ProfileHandler{
		sectionService: sectionService,
		pictureService: pictureService,
		previewService: previewService,
	}
}

type sectionPayload struct {
	ID          int64  `json:"id"` // id <= 0 — еще не созданная секция
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

type updateProfileRequest struct {
	Bio      string           `json:"bio"`
	Sections []sectionPayload `json:"sections"`
}

type updateProfileResponse struct {
	SectionIDs map[int64]int64 `json:"section_ids"`
}

func (h *ProfileHandler) InitProfile(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.sectionService.InitProfile(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ownerID := chi.URLParam(r, "userID")
	if ownerID == "" {
		ownerID = p.UserID
	}

	result, err := h.sectionService.GetProfile(r.Context(), p, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sections := make([]domain.SectionInput, 0, len(req.Sections))
	for _, s := range req.Sections {
		sections = append(sections, domain.SectionInput{
			Existing:    s.ID > 0,
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			IsPublic:    s.IsPublic,
		})
	}

	mapping, err := h.sectionService.UpdateProfile(r.Context(), p, req.Bio, sections)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateProfileResponse{SectionIDs: mapping})
}

func (h *ProfileHandler) UpdateProfilePicture(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxPictureUploadSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("picture")
	if err != nil {
		http.Error(w, "Picture file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	profile, err := h.pictureService.UpdateProfilePicture(r.Context(), p, header, file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfilePicturePreview(w http.ResponseWriter, r *http.Request) {
	p, err := auth.Verify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ownerID := r.URL.Query().Get("user_id")
	if ownerID == "" {
		ownerID = p.UserID
	}

	obj, err := h.previewService.GetProfileThumbnail(r.Context(), ownerID)
	if err != nil {
		http.Error(w, "Preview not found", http.StatusNotFound)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	io.Copy(w, obj)
}
