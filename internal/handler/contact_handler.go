package handler

import (
	"encoding/json"
	"net/http"

	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Contact — POST /v1/contact (public)
// ============================================================

func contactSubmitHandler(svc *service.ContactService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contact")
		defer span.End()

		var req struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := svc.Submit(ctx, req.Name, req.Email, req.Message)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}
