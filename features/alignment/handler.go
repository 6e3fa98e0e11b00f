package alignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"lingualign/internal/align"
	"lingualign/internal/csvio"
	"lingualign/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create accepts a multipart form with two CSV files, "reference" and
// "target", each carrying ContentId and Content columns.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	// 50 MB limit (enforced at reader level)
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Name is required", http.StatusBadRequest)
		return
	}

	reference, err := h.readCSVField(r, "reference")
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	target, err := h.readCSVField(r, "target")
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.service.Create(r.Context(), name, reference, target)
	if err != nil {
		if errors.Is(err, align.ErrValidation) {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("operation failed", "error", err, "name", name)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": job}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) readCSVField(r *http.Request, field string) ([]align.Record, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file is required", field)
	}
	defer func(f multipart.File) {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close uploaded file", "error", cerr, "field", field)
		}
	}(file)

	records, err := csvio.ReadRecords(file)
	if err != nil {
		return nil, fmt.Errorf("%s file: %w", field, err)
	}
	return records, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Ensure we return [] instead of null for empty list
	if jobs == nil {
		jobs = []Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Alignment job not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": job}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Rows(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rows, err := h.service.Rows(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Alignment job not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []align.AlignedRow{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": rows,
		"meta": map[string]int{"count": len(rows)},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Export streams the aligned rows back out as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rows, err := h.service.Rows(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Alignment job not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "alignment_"+id+".csv"))
	if err := csvio.WriteAlignedRows(w, rows); err != nil {
		slog.Error("failed to write csv export", "error", err, "job_id", id)
	}
}

func (h *Handler) Rerun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Rerun(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Alignment job not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Alignment job not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
