package middleware

import (
	"net/http"
	"strings"

	"github.com/safetradehq/safetrade-backend/api/responses"
	"github.com/safetradehq/safetrade-backend/pkg/config"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
	"github.com/safetradehq/safetrade-backend/pkg/security"
)

const adminCapabilityHeader = "X-Admin-Capability"

// AdminCapability gates destructive staff endpoints behind a shared
// capability secret in addition to the admin role claim. When no hash
// is configured the gate is closed, not open.
func AdminCapability(cfg config.AdminConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.CapabilityHash == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability not configured"))
				return
			}

			secret := strings.TrimSpace(r.Header.Get(adminCapabilityHeader))
			if secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability required"))
				return
			}

			ok, err := security.VerifySecret(secret, cfg.CapabilityHash)
			if err != nil || !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin capability rejected"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
