package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/uzbk/farmmarket/internal/store"
)

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	profile, err := store.CreateProfile(r.Context(), s.DB, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	// ?user= reads another member's public profile
	target := r.URL.Query().Get("user")
	if target == "" {
		target = callerID
	}

	profile, err := store.GetProfile(r.Context(), s.DB, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type nicknameReq struct {
	Nickname string `json:"nickname"`
}

func (s *Server) updateNickname(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	var req nicknameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Nickname == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nickname is required"})
		return
	}

	profile, err := store.UpdateNickname(r.Context(), s.DB, callerID, req.Nickname)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) nicknameAvailable(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nickname is required"})
		return
	}

	available, err := store.IsNicknameAvailable(r.Context(), s.DB, nickname, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

type regionReq struct {
	RegionCode string `json:"region_code"`
	RegionName string `json:"region_name"`
}

func (s *Server) updateRegion(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	var req regionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.RegionCode == "" || req.RegionName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "region code and name are required"})
		return
	}

	profile, err := store.UpdateRegion(r.Context(), s.DB, callerID, req.RegionCode, req.RegionName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
