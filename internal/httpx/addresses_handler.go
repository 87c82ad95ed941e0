package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uzbk/farmmarket/internal/store"
)

type addressReq struct {
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
	PostalCode    string `json:"postal_code"`
	RoadAddress   string `json:"road_address"`
	AddressDetail string `json:"address_detail"`
	SetDefault    bool   `json:"set_default"`
}

func (s *Server) upsertAddress(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(w, r)
	if ownerID == "" {
		return
	}

	var req addressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ReceiverName == "" || req.ReceiverPhone == "" || req.RoadAddress == "" {
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": "receiver name, phone and road address are required"})
		return
	}

	addr, err := store.UpsertAddress(r.Context(), s.DB, store.UpsertAddressRequest{
		ID:            chi.URLParam(r, "addressID"), // empty on POST
		OwnerID:       ownerID,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		PostalCode:    req.PostalCode,
		RoadAddress:   req.RoadAddress,
		AddressDetail: req.AddressDetail,
		SetDefault:    req.SetDefault,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, addr)
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(w, r)
	if ownerID == "" {
		return
	}

	addrs, err := store.ListAddresses(r.Context(), s.DB, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ownerID := userID(w, r)
	if ownerID == "" {
		return
	}

	if err := store.DeleteAddress(r.Context(), s.DB, chi.URLParam(r, "addressID"), ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
