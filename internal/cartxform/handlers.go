package cartxform

import (
	"errors"
	"net/http"

	"github.com/noah-isme/pack-discount/internal/common"
)

// Handler exposes the cart transform over HTTP.
type Handler struct {
	Svc *Service
}

// Run handles POST /api/v1/cart-transform/run. Bodies that are not JSON get a 400; any JSON
// document gets a 200 with a result, which is empty when nothing qualifies.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Evaluator == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "evaluator not configured", nil)
		return
	}
	in, err := Decode(r.Body)
	if err != nil {
		if errors.Is(err, ErrInvalidJSON) {
			common.WriteError(w, common.BadRequest("INVALID_JSON", "request body is not valid JSON", err))
			return
		}
		common.WriteError(w, common.BadRequest("INVALID_BODY", "request body could not be read", err))
		return
	}
	common.JSON(w, http.StatusOK, h.Svc.Run(r.Context(), in))
}
