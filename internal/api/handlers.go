package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/example/ec-order-engine/internal/api/middleware"
	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/example/ec-order-engine/internal/reconciliation"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type Handlers struct {
	orders   *command.Handler
	payments *reconciliation.Handler
	// exposeDetail adds the underlying error to 5xx bodies.
	exposeDetail bool
	log          *zap.Logger
}

func NewHandlers(orders *command.Handler, payments *reconciliation.Handler, exposeDetail bool) *Handlers {
	return &Handlers{
		orders:       orders,
		payments:     payments,
		exposeDetail: exposeDetail,
		log:          logger.Named("api"),
	}
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.PlaceOrder
	if !h.decode(w, r, &cmd) {
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), cmd, actorFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CancelOrder
	// The reason is optional, so an empty body is fine.
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.orders.CancelOrder(r.Context(), cmd, actorFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Admin Handlers

func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateStatus
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.orders.UpdateStatus(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateTracking
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.orders.UpdateTracking(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Payment Handlers

type remoteOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createPaymentOrderResponse struct {
	Order   remoteOrderResponse `json:"order"`
	KeyID   string              `json:"key_id"`
	OrderID string              `json:"orderId"`
}

func (h *Handlers) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreatePaymentOrder
	if !h.decode(w, r, &cmd) {
		return
	}

	po, err := h.orders.CreatePaymentOrder(r.Context(), cmd, actorFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, createPaymentOrderResponse{
		Order: remoteOrderResponse{
			ID:       po.Remote.ID,
			Amount:   po.Remote.Amount,
			Currency: po.Remote.Currency,
			Receipt:  po.Remote.Receipt,
		},
		KeyID:   po.KeyID,
		OrderID: po.Order.ID,
	})
}

type verifyPaymentResponse struct {
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req reconciliation.VerifyPayment
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.payments.VerifyClientPayment(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, verifyPaymentResponse{
		Status:        o.Status(),
		PaymentStatus: o.Payment.Status,
		TotalAmount:   o.TotalPrice,
		PaidAt:        o.PaidAt,
	})
}

// Webhook verifies the signature over the exact bytes received, so the body
// is read raw and never re-encoded.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxWebhookBody)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	err = h.payments.HandleWebhook(r.Context(), raw,
		r.Header.Get("X-Razorpay-Signature"), r.Header.Get("X-Razorpay-Event-Id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Detail  string              `json:"detail,omitempty"`
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := errorResponse{Message: err.Error()}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body.Message = apperr.ErrValidation.Error()
		body.Errors = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", apperr.Kind(err)),
			zap.Error(err))
		body.Message = http.StatusText(status)
		if h.exposeDetail {
			body.Detail = err.Error()
		}
	}

	respondJSON(w, status, body)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Message: message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actorFrom turns validated bearer claims into the caller the command
// layer expects. Anonymous requests yield nil.
func actorFrom(r *http.Request) *command.Actor {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &command.Actor{
		UserID: claims.UserID,
		Email:  claims.Email,
		Admin:  claims.IsAdmin(),
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}
