/**
 * @description
 * This file contains the HTTP handlers for the lumentix backend's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TomikeDS/lumentix-backend/internal/app"
	"github.com/TomikeDS/lumentix-backend/internal/domain"
	"github.com/TomikeDS/lumentix-backend/internal/store"
)

// SponsorshipHandlers holds the application service that handlers will use.
type SponsorshipHandlers struct {
	service *app.Service
}

// NewSponsorshipHandlers creates a new instance of SponsorshipHandlers.
func NewSponsorshipHandlers(service *app.Service) *SponsorshipHandlers {
	return &SponsorshipHandlers{service: service}
}

// authedUserID extracts and parses the authenticated user's UUID, writing the
// error response itself when that fails.
func (h *SponsorshipHandlers) authedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api msg=\"invalid user id in token\" user_id=%s", userIDStr)
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

// CreateTierHandler handles organizer requests to create a sponsorship tier.
func (h *SponsorshipHandlers) CreateTierHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_tier outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	tier, err := h.service.CreateTier(r.Context(), organizerID, req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidTier) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=create_tier organizer_id=%s err=%v", organizerID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create sponsor tier")
		return
	}

	h.writeJSON(w, http.StatusCreated, tier)
}

// UpdateTierHandler handles organizer requests to update a sponsorship tier.
func (h *SponsorshipHandlers) UpdateTierHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	tierID, err := uuid.Parse(chi.URLParam(r, "tierID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid tier ID format")
		return
	}

	var req domain.UpdateTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=update_tier outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	tier, err := h.service.UpdateTier(r.Context(), organizerID, tierID, req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidTier) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, store.ErrTierNotFound) {
			h.writeError(w, http.StatusNotFound, "Sponsor tier not found")
			return
		}
		log.Printf("level=error component=api endpoint=update_tier tier_id=%s err=%v", tierID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to update sponsor tier")
		return
	}

	h.writeJSON(w, http.StatusOK, tier)
}

// ListTiersHandler returns all tiers with their current availability.
func (h *SponsorshipHandlers) ListTiersHandler(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.ListTiers(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_tiers err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list sponsor tiers")
		return
	}
	if tiers == nil {
		tiers = []domain.TierAvailability{}
	}
	h.writeJSON(w, http.StatusOK, tiers)
}

// GetTierHandler returns a single tier with its current availability.
func (h *SponsorshipHandlers) GetTierHandler(w http.ResponseWriter, r *http.Request) {
	tierID, err := uuid.Parse(chi.URLParam(r, "tierID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid tier ID format")
		return
	}

	tier, err := h.service.GetTier(r.Context(), tierID)
	if err != nil {
		if errors.Is(err, store.ErrTierNotFound) {
			h.writeError(w, http.StatusNotFound, "Sponsor tier not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_tier tier_id=%s err=%v", tierID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load sponsor tier")
		return
	}

	h.writeJSON(w, http.StatusOK, tier)
}

// CreateIntentHandler reserves a pending contribution and returns the payment
// instructions (escrow wallet, amount, memo) the sponsor needs to settle on-chain.
func (h *SponsorshipHandlers) CreateIntentHandler(w http.ResponseWriter, r *http.Request) {
	sponsorID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_intent outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.TierID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), sponsorID, req.TierID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_intent outcome=failed sponsor_id=%s tier_id=%s err=%v", sponsorID, req.TierID, err)
		if errors.Is(err, store.ErrTierNotFound) {
			h.writeError(w, http.StatusNotFound, "Sponsor tier not found")
			return
		}
		if errors.Is(err, store.ErrTierFull) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Unable to create payment intent")
		return
	}

	log.Printf("level=info component=api endpoint=create_intent outcome=accepted sponsor_id=%s contribution_id=%s", sponsorID, intent.ContributionID)
	h.writeJSON(w, http.StatusCreated, intent)
}

// ConfirmContributionHandler verifies a submitted transaction hash against the
// ledger and settles the matching contribution.
func (h *SponsorshipHandlers) ConfirmContributionHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=confirm_contribution outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TransactionHash) == "" {
		h.writeError(w, http.StatusBadRequest, "transaction_hash is required")
		return
	}

	contribution, err := h.service.ConfirmContribution(r.Context(), req.TransactionHash)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_contribution outcome=failed tx_hash=%s err=%v", req.TransactionHash, err)
		if errors.Is(err, store.ErrContributionNotFound) {
			h.writeError(w, http.StatusNotFound, "No pending contribution matches this transaction")
			return
		}
		if errors.Is(err, store.ErrTierFull) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, app.ErrBadEvidence) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Unable to confirm contribution")
		return
	}

	log.Printf("level=info component=api endpoint=confirm_contribution outcome=confirmed contribution_id=%s tx_hash=%s", contribution.ID, req.TransactionHash)
	h.writeJSON(w, http.StatusOK, contribution)
}

// ListMyContributionsHandler returns the authenticated sponsor's contributions.
func (h *SponsorshipHandlers) ListMyContributionsHandler(w http.ResponseWriter, r *http.Request) {
	sponsorID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	contributions, err := h.service.ListSponsorContributions(r.Context(), sponsorID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_contributions sponsor_id=%s err=%v", sponsorID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list contributions")
		return
	}
	if contributions == nil {
		contributions = []domain.Contribution{}
	}
	h.writeJSON(w, http.StatusOK, contributions)
}

// writeJSON is a helper for writing JSON responses.
func (h *SponsorshipHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *SponsorshipHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
