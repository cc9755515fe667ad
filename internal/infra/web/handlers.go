package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"logistics-payment-engine/internal/application"
	"logistics-payment-engine/internal/domain/model"
)

type actorKey struct{}

type actor struct {
	ID   string
	Role string
}

func withActor(ctx context.Context, id, role string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{ID: id, Role: role})
}

func actorFrom(ctx context.Context) actor {
	if a, ok := ctx.Value(actorKey{}).(actor); ok {
		return a
	}
	return actor{ID: "unknown", Role: "service"}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the domain error chain to a stable code and HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := application.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "INVALID_AMOUNT", "INVALID_ARGUMENT":
		status = http.StatusBadRequest
	case "NOT_FOUND", "WALLET_NOT_FOUND", "CONFIG_MISSING":
		status = http.StatusNotFound
	case "ALREADY_EXISTS", "DUPLICATE_REQUEST", "STATE_CONFLICT", "SUBSCRIPTION_SUSPENDED", "DELIVERY_NOT_CONFIRMED":
		status = http.StatusConflict
	case "AMOUNT_EXCEEDS_AVAILABLE":
		status = http.StatusUnprocessableEntity
	case "GATEWAY_UNAVAILABLE":
		status = http.StatusBadGateway
	case "GATEWAY_TIMEOUT":
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type createEscrowRequest struct {
	ShipmentID  string `json:"shipment_id"`
	PayerID     string `json:"payer_id"`
	PayeeID     string `json:"payee_id"`
	PayeeKind   string `json:"payee_kind"` // "fleet" | "driver"
	GrossAmount int64  `json:"gross_amount"`
	PayerTier   string `json:"payer_tier"`
}

func (s *Server) createEscrowHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEscrowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		txn, err := s.facade.CreateShipmentEscrow(r.Context(), req.ShipmentID, req.PayerID, req.PayeeID,
			model.WalletKind(req.PayeeKind), req.GrossAmount, model.SubscriptionTier(req.PayerTier))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

func (s *Server) listShipmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID := chi.URLParam(r, "shipmentID")
		refunds, err := s.facade.ListRefundsByShipment(r.Context(), shipmentID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		available, err := s.facade.AvailableForRefund(r.Context(), shipmentID)
		if err != nil {
			available = 0
		}
		writeJSON(w, http.StatusOK, struct {
			ShipmentID string                 `json:"shipment_id"`
			Refundable int64                  `json:"refundable"`
			Refunds    []*model.RefundRequest `json:"refunds"`
		}{ShipmentID: shipmentID, Refundable: available, Refunds: refunds})
	}
}

func (s *Server) refundableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID := chi.URLParam(r, "shipmentID")
		available, err := s.facade.AvailableForRefund(r.Context(), shipmentID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			ShipmentID string `json:"shipment_id"`
			Refundable int64  `json:"refundable"`
		}{ShipmentID: shipmentID, Refundable: available})
	}
}

type confirmDeliveryRequest struct {
	ConfirmedBy    string    `json:"confirmed_by"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
	ProofReference string    `json:"proof_reference"`
}

func (s *Server) confirmDeliveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID := chi.URLParam(r, "shipmentID")
		var req confirmDeliveryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ConfirmedAt.IsZero() {
			req.ConfirmedAt = time.Now()
		}
		if req.ConfirmedBy == "" {
			req.ConfirmedBy = actorFrom(r.Context()).ID
		}
		settlement, err := s.facade.ConfirmDelivery(r.Context(), shipmentID, req.ConfirmedBy, req.ProofReference, req.ConfirmedAt)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settlement)
	}
}

func (s *Server) releaseEscrowHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID := chi.URLParam(r, "shipmentID")
		settlement, err := s.facade.ReleaseEscrow(r.Context(), shipmentID, actorFrom(r.Context()).ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settlement)
	}
}

type createRefundRequest struct {
	ShipmentID string                 `json:"shipment_id"`
	Type       string                 `json:"type"`
	Amount     int64                  `json:"amount"`
	Reason     string                 `json:"reason"`
	Evidence   map[string]interface{} `json:"evidence"`
}

func (s *Server) createRefundRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rr, err := s.facade.CreateRefundRequest(r.Context(), req.ShipmentID, actorFrom(r.Context()).ID,
			model.RefundType(req.Type), req.Amount, req.Reason, req.Evidence)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rr)
	}
}

type approveRefundRequest struct {
	Amount *int64 `json:"amount"` // nil approves the requested amount
}

func (s *Server) approveRefundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		var req approveRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rr, err := s.facade.ApproveRefundRequest(r.Context(), requestID, actorFrom(r.Context()).ID, req.Amount)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rr)
	}
}

type rejectRefundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectRefundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		var req rejectRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rr, err := s.facade.RejectRefundRequest(r.Context(), requestID, actorFrom(r.Context()).ID, req.Reason)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rr)
	}
}

type createSubscriptionRequest struct {
	FleetID      string `json:"fleet_id"`
	Tier         string `json:"tier"`
	Cycle        string `json:"cycle"`
	FeeAmount    int64  `json:"fee_amount"`
	FeeBasis     string `json:"fee_basis"`
	VehicleCount int    `json:"vehicle_count"`
	AutoRenew    bool   `json:"auto_renew"`
}

func (s *Server) createSubscriptionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		sub, err := s.facade.CreateFleetSubscription(r.Context(), req.FleetID,
			model.SubscriptionTier(req.Tier), model.BillingCycle(req.Cycle),
			req.FeeAmount, model.FeeBasis(req.FeeBasis), req.VehicleCount, req.AutoRenew)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func (s *Server) cancelSubscriptionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subscriptionID := chi.URLParam(r, "subscriptionID")
		if err := s.facade.CancelSubscription(r.Context(), subscriptionID, actorFrom(r.Context()).ID); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type updateConfigRequest struct {
	Value    string `json:"value"`
	Category string `json:"category"`
}

func (s *Server) updateConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := actorFrom(r.Context())
		if a.Role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		key := chi.URLParam(r, "key")
		var req updateConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		cfg, err := s.facade.UpdatePaymentConfig(r.Context(), key, req.Value, model.ConfigCategory(req.Category), a.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}
