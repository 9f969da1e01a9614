package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/services"
	"github.com/davidrys/gatepass/internal/store"
	appErrors "github.com/davidrys/gatepass/pkg/errors"
	"github.com/davidrys/gatepass/pkg/response"
	"github.com/davidrys/gatepass/pkg/validator"
)

// RegistrationHandler exposes registration issuance and artifact rendering.
type RegistrationHandler struct {
	registrations *services.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registrations *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

type createRegistrationRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Coming bool   `json:"coming"`
}

type registrantDTO struct {
	Token        string     `json:"token"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	ComingIntent bool       `json:"coming_intent"`
	Status       string     `json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toRegistrantDTO(r *models.Registrant) registrantDTO {
	return registrantDTO{
		Token:        r.Token,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		ComingIntent: r.ComingIntent,
		Status:       r.Status,
		CheckedInAt:  r.CheckedInAt,
		CreatedAt:    r.CreatedAt,
	}
}

// Create issues a token for the supplied identity and stores the record.
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req createRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid request body"))
		return
	}

	record, err := h.registrations.Register(c.Request.Context(), services.Identity{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}, req.Coming)
	if err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			response.Error(c, appErrors.NewBadRequest(failures.Error()))
			return
		}
		response.Error(c, appErrors.Wrap(err, "could not create registration"))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"registrant": toRegistrantDTO(record)})
}

// Get returns one registration by token.
func (h *RegistrationHandler) Get(c *gin.Context) {
	record, err := h.registrations.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(c, appErrors.ErrRegistrantNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "could not load registration"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"registrant": toRegistrantDTO(record)})
}

// List returns registrations, optionally filtered by status.
func (h *RegistrationHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	records, total, err := h.registrations.List(c.Request.Context(), status, page, perPage)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "could not list registrations"))
		return
	}

	dtos := make([]registrantDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toRegistrantDTO(&records[i]))
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"registrants": dtos}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	})
}

// Artifact renders the registration's QR code as a PNG.
func (h *RegistrationHandler) Artifact(c *gin.Context) {
	png, err := h.registrations.Artifact(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(c, appErrors.ErrRegistrantNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "could not render code"))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
