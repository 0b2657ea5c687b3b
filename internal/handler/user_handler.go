package handler

import (
	"net/http"

	"github.com/hitoshi/edulab/internal/middleware"
)

// UserHandler はユーザー情報更新のHTTPハンドラー。
type UserHandler struct {
	service AccountServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AccountServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateNameRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateNameResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UpdateName は表示名を更新する。
// PUT /api/update-name
func (h *UserHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req updateNameRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	if req.Email != "" {
		if apiErr := middleware.CheckEmailAccess(r.Context(), req.Email); apiErr != nil {
			handleServiceError(w, r, apiErr)
			return
		}
	}

	if err := h.service.UpdateName(r.Context(), req.Email, req.Name); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateNameResponse{
		Success: true,
		Message: "Name updated successfully",
	})
}
