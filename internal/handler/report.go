package handler

import (
	"net/http"

	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/store"
)

// ReportHandler serves read-only business reports.
type ReportHandler struct {
	store *store.Store
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(st *store.Store) *ReportHandler {
	return &ReportHandler{store: st}
}

// Audit returns the most recent audit entries, newest first.
// GET /api/v1/reports/audit
func (h *ReportHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 100), 1, 1000)

	entries, err := h.store.ListAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: entries,
		Meta:     &model.ResponseMeta{Count: len(entries), Limit: limit},
	})
}
