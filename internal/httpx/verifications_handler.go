package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uzbk/farmmarket/internal/geo"
	"github.com/uzbk/farmmarket/internal/store"
)

type submitVerificationReq struct {
	FarmName            string  `json:"farm_name"`
	OwnerName           string  `json:"owner_name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	AddressDetail       *string `json:"address_detail"`
	LocationNote        *string `json:"location_note"`
	Description         *string `json:"description"`
	BusinessLicensePath string  `json:"business_license_path"`
}

func (s *Server) submitVerification(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	var req submitVerificationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.FarmName == "" || req.OwnerName == "" || req.Phone == "" ||
		req.Address == "" || req.BusinessLicensePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required fields"})
		return
	}

	// Geocode so the farm shows up on the map. A miss is not fatal: the
	// verification proceeds without coordinates.
	var lat, lng *float64
	coords, err := s.Geocoder.Geocode(r.Context(), req.Address)
	switch {
	case err == nil:
		lat, lng = &coords.Latitude, &coords.Longitude
	case errors.Is(err, geo.ErrNoResult):
	default:
		log.Printf("verification %s: geocode: %v", callerID, err)
	}

	v, err := store.SubmitVerification(r.Context(), s.DB, store.SubmitVerificationRequest{
		UserID:              callerID,
		FarmName:            req.FarmName,
		OwnerName:           req.OwnerName,
		Phone:               req.Phone,
		Address:             req.Address,
		AddressDetail:       req.AddressDetail,
		LocationNote:        req.LocationNote,
		Description:         req.Description,
		BusinessLicensePath: req.BusinessLicensePath,
		Latitude:            lat,
		Longitude:           lng,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getVerification(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	v, err := store.GetVerification(r.Context(), s.DB, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// requireAdmin gates the review endpoints to the configured operator.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) string {
	callerID := userID(w, r)
	if callerID == "" {
		return ""
	}
	if s.AdminUserID == "" || callerID != s.AdminUserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return ""
	}
	return callerID
}

func (s *Server) listPendingVerifications(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == "" {
		return
	}

	pending, err := store.ListPendingVerifications(r.Context(), s.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) approveVerification(w http.ResponseWriter, r *http.Request) {
	adminID := s.requireAdmin(w, r)
	if adminID == "" {
		return
	}

	if err := store.ApproveVerification(r.Context(), s.DB, chi.URLParam(r, "userID"), adminID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectVerification(w http.ResponseWriter, r *http.Request) {
	adminID := s.requireAdmin(w, r)
	if adminID == "" {
		return
	}

	var req rejectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	if err := store.RejectVerification(r.Context(), s.DB, chi.URLParam(r, "userID"), adminID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := store.ListApprovedFarms(r.Context(), s.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farms)
}
