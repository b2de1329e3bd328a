package reservation_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/reservation"
	"ms-booking/internal/utils"
)

type Handler struct {
	Service *reservation.Service
	Logger  *logger.Logger
}

func NewHandler(service *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// CreateReservation takes a booking request. It serves the public form
// as well as operators; the actor on the context decides how much the
// request is trusted.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateReservation: received request")

	var in reservation.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.Service.Create(r.Context(), in, auth.OperatorID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: %v", err))
		http.Error(w, "Could not create reservation: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateReservation: reservation %s created", created.ID))
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("GetReservation: reservationId=%s", reservationID))

	data, err := h.Service.Get(r.Context(), reservationID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetReservation: reservation not found: %v", err))
		http.Error(w, "Reservation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetReservation: failed to encode response: %v", err))
		return
	}
}

// UpdateReservation applies a partial update, including lifecycle
// transitions.
func (h *Handler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("UpdateReservation: reservationId=%s", reservationID))

	var in reservation.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateReservation: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.Service.Update(r.Context(), reservationID, in, auth.OperatorID(r.Context()))
	if err != nil {
		h.writeUpdateError(w, reservationID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateReservation: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateReservation: reservation %s now %s", updated.ID, updated.Status))
}

func (h *Handler) writeUpdateError(w http.ResponseWriter, reservationID string, err error) {
	var verr *reservation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.Logger.Warn("API", fmt.Sprintf("UpdateReservation: %s blocked: %v", reservationID, err))
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, reservation.ErrInvalidTransition):
		h.Logger.Warn("API", fmt.Sprintf("UpdateReservation: %s invalid transition: %v", reservationID, err))
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, reservation.ErrReservationNotFound):
		http.Error(w, "Reservation not found", http.StatusNotFound)
	default:
		h.Logger.Error("API", fmt.Sprintf("UpdateReservation: %s failed: %v", reservationID, err))
		http.Error(w, "Could not update reservation: "+err.Error(), http.StatusInternalServerError)
	}
}

// RequestLogger records every request with its status and duration.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("DeleteReservation: reservationId=%s", reservationID))

	if err := h.Service.Cancel(r.Context(), reservationID, auth.OperatorID(r.Context())); err != nil {
		h.writeUpdateError(w, reservationID, err)
		return
	}
	h.Logger.Info("API", "DeleteReservation: reservation cancelled successfully")

	w.WriteHeader(http.StatusNoContent)
}

// GetStats summarizes the reservation book for the back office.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStats: %v", err))
		http.Error(w, "Could not compute stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(utils.SuccessResponse("reservation stats", stats)); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStats: failed to encode response: %v", err))
	}
}
