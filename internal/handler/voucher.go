package handler

import (
	"crypto/rand"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wifigate/wifigate/internal/audit"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/server/middleware"
	"github.com/wifigate/wifigate/internal/store"
)

// voucherAlphabet excludes lookalike characters (0/O, 1/I/L) so codes
// survive being read off a paper slip.
const voucherAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const maxBatchSize = 1000

// VoucherHandler manages prepaid access vouchers.
type VoucherHandler struct {
	store    *store.Store
	recorder *audit.Recorder
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(st *store.Store, recorder *audit.Recorder) *VoucherHandler {
	return &VoucherHandler{store: st, recorder: recorder}
}

type generateVouchersRequest struct {
	Count           int     `json:"count"`
	Profile         string  `json:"profile"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

// Generate creates a batch of vouchers with random codes.
// POST /api/v1/vouchers
func (h *VoucherHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateVouchersRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Count < 1 || req.Count > maxBatchSize {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest,
			"Count must be between 1 and "+strconv.Itoa(maxBatchSize))
		return
	}
	if req.Profile == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Profile is required")
		return
	}
	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "duration_minutes must be positive")
		return
	}

	var createdBy int64
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		createdBy = claims.UserID
	}

	batchID := uuid.Must(uuid.NewV7()).String()
	vouchers := make([]model.Voucher, req.Count)
	for i := range vouchers {
		code, err := generateVoucherCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to generate codes")
			return
		}
		vouchers[i] = model.Voucher{
			Code:            code,
			Profile:         req.Profile,
			DurationMinutes: req.DurationMinutes,
			Price:           req.Price,
			Status:          model.VoucherUnused,
			BatchID:         batchID,
			CreatedBy:       createdBy,
		}
	}

	if err := h.store.CreateVoucherBatch(r.Context(), vouchers); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to create vouchers")
		return
	}

	h.audit(r, batchID, "ok")
	writeJSON(w, http.StatusCreated, model.ListResponse{
		Resource: vouchers,
		Meta:     &model.ResponseMeta{Count: len(vouchers)},
	})
}

// List returns vouchers, optionally filtered by ?status=.
// GET /api/v1/vouchers
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.VoucherUnused, model.VoucherUsed, model.VoucherExpired:
	default:
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Unknown status: "+status)
		return
	}
	limit := clampInt(queryInt(r, "limit", 100), 1, 1000)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	vouchers, err := h.store.ListVouchers(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to list vouchers")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: vouchers,
		Meta:     &model.ResponseMeta{Count: len(vouchers), Limit: limit, Offset: offset},
	})
}

type redeemVoucherRequest struct {
	Username string `json:"username"`
}

// Redeem consumes an unused voucher for a hotspot user. A voucher can be
// redeemed exactly once; a second attempt answers 409.
// POST /api/v1/vouchers/{code}/redeem
func (h *VoucherHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req redeemVoucherRequest
	if err := readJSON(r, &req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Username is required")
		return
	}

	voucher, err := h.store.RedeemVoucher(r.Context(), code, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "Voucher not found")
			return
		}
		if errors.Is(err, store.ErrVoucherUsed) {
			writeError(w, http.StatusConflict, model.CodeVoucherUsed, "Voucher has already been used")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to redeem voucher")
		return
	}

	h.audit(r, voucher.Code, "ok")
	writeJSON(w, http.StatusOK, voucher)
}

// Summary returns voucher counts and realized revenue.
// GET /api/v1/vouchers/summary
func (h *VoucherHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.VoucherSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to summarize vouchers")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *VoucherHandler) audit(r *http.Request, targetID, outcome string) {
	var actorID int64
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		actorID = claims.UserID
	}
	h.recorder.Record(model.AuditEntry{
		ActorID:    actorID,
		Action:     string(model.ActionManageVouchers),
		TargetType: "voucher",
		TargetID:   targetID,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(r.Context()),
	})
}

// generateVoucherCode returns a code like "KTRW-8NPM" with roughly 40 bits
// of entropy from the unambiguous alphabet.
func generateVoucherCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, 9)
	for i, b := range buf {
		pos := i
		if i >= 4 {
			pos++
		}
		code[pos] = voucherAlphabet[int(b)%len(voucherAlphabet)]
	}
	code[4] = '-'
	return string(code), nil
}
