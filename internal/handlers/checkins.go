package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/services"
	appErrors "github.com/davidrys/gatepass/pkg/errors"
	"github.com/davidrys/gatepass/pkg/response"
)

// CheckInHandler exposes the check-in coordinator directly, for stations that
// decode codes themselves and only need the transactional step.
type CheckInHandler struct {
	checkins *services.CheckInService
}

// NewCheckInHandler constructs a CheckInHandler.
func NewCheckInHandler(checkins *services.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins}
}

type checkInRequest struct {
	Token string `json:"token"`
}

// Create resolves a token into a check-in outcome. Both succeeded and
// already_checked_in are 200s: re-presenting a code is a normal terminal
// answer, not an error.
func (h *CheckInHandler) Create(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		response.Error(c, appErrors.NewBadRequest("token is required"))
		return
	}

	result := h.checkins.CheckIn(c.Request.Context(), strings.TrimSpace(req.Token))

	switch result.Outcome {
	case services.OutcomeSucceeded, services.OutcomeAlreadyCheckedIn:
		response.Success(c, http.StatusOK, gin.H{
			"outcome":    string(result.Outcome),
			"registrant": toRegistrantDTO(result.Record),
		})
	case services.OutcomeNotFound:
		response.Error(c, appErrors.ErrRegistrantNotFound)
	default:
		response.Error(c, appErrors.ErrStoreUnavailable.WithInternal(result.Err))
	}
}
