package controllers

import (
	"net/http"

	"github.com/safetradehq/safetrade-backend/api/responses"
	"github.com/safetradehq/safetrade-backend/api/validators"
	"github.com/safetradehq/safetrade-backend/internal/trades"
	pkgerrors "github.com/safetradehq/safetrade-backend/pkg/errors"
	"github.com/safetradehq/safetrade-backend/pkg/logger"
)

// SweepStaleTrades cancels trades left untouched past the inactivity
// deadline. The cron worker runs the same sweep on a schedule; this
// endpoint exists for staff to force a pass.
func SweepStaleTrades(svc trades.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trades service unavailable"))
			return
		}

		batchSize, err := validators.ParseQueryInt(r, "batch_size", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := svc.SweepStale(r.Context(), batchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"cancelled": cancelled})
	}
}
