package templates

import (
	"errors"
	"io"
	"net/http"

	"certcanvas/core"
	"certcanvas/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// ListResponse is the envelope the list endpoint serves. Clients also
// accept a bare array; this server always sends the envelope.
type ListResponse struct {
	Items []core.Document `json:"items"`
}

// HandleList serves GET /templates/simple.
func HandleList(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list templates"})
			return
		}
		if docs == nil {
			docs = []core.Document{}
		}
		render.JSON(w, r, ListResponse{Items: docs})
	}
}

// HandleGet serves GET /templates/simple/{id}.
func HandleGet(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		doc, err := store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"template_id": id,
			}).Error("Failed to get template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}
		render.JSON(w, r, doc)
	}
}

// HandleCreate serves POST /templates/simple. The payload is normalized
// before validation, so canonical and legacy shapes are both accepted.
func HandleCreate(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		doc, err := core.NormalizeRaw(body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Request body is not valid JSON"})
			return
		}

		if doc.ID == "" {
			doc.ID = ulid.Make().String()
		}
		if subject, ok := r.Context().Value(middleware.SubjectContextKey).(string); ok && doc.CreatedBy == "" {
			doc.CreatedBy = subject
		}

		if err := doc.Validate(); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		if err := store.Save(r.Context(), &doc); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"template_id": doc.ID,
			}).Error("Failed to save template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save template"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, doc)
	}
}

// HandleDelete serves DELETE /templates/simple/{id}.
func HandleDelete(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"template_id": id,
			}).Error("Failed to delete template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete template"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}
