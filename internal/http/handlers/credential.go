package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"veoqueue/internal/auth"
	"veoqueue/internal/i18n"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

type credentialResponse struct {
	Ready    bool `json:"ready"`
	Selected bool `json:"selected"`
}

// CredentialStatus reports whether a key is stored and whether it is usable.
// The key itself is never returned.
func (a *App) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	selected, err := a.Gate.HasCredential(r.Context())
	if err != nil {
		a.log().Error().Err(err).Msg("credential lookup failed")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, credentialResponse{Ready: a.Gate.IsReady(), Selected: selected})
}

// SelectCredential stores a new API key and marks the gate ready.
func (a *App) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	if err := a.Gate.Select(r.Context(), req.APIKey); err != nil {
		if errors.Is(err, auth.ErrEmptyCredential) {
			a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgCredentialRequired)
			return
		}
		a.log().Error().Err(err).Msg("credential select failed")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, credentialResponse{Ready: a.Gate.IsReady(), Selected: true})
}
