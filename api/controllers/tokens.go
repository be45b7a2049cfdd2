package controllers

import (
	"net/http"
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/responses"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/validators"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/auth"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

type mintTokenRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
}

type mintTokenResponse struct {
	AccessToken string    `json:"access_token"`
	Username    string    `json:"username"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MintDevToken issues a signed access token for any username without a
// credential check. The router mounts it outside production only; the token
// grants nothing by itself because every operation is re-checked against the
// role registry.
func MintDevToken(cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload mintTokenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now().UTC()
		token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{Username: payload.Username})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}

		responses.WriteSuccess(w, mintTokenResponse{
			AccessToken: token,
			Username:    payload.Username,
			ExpiresAt:   now.Add(cfg.TokenTTL()),
		})
	}
}
