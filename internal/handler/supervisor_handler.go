package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	"github.com/noah-isme/siwes-logbook-api/internal/service"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
	"github.com/noah-isme/siwes-logbook-api/pkg/response"
)

// SupervisorHandler wires HTTP endpoints to the supervisor registry.
type SupervisorHandler struct {
	service *service.SupervisorService
}

// NewSupervisorHandler creates a new handler.
func NewSupervisorHandler(svc *service.SupervisorService) *SupervisorHandler {
	return &SupervisorHandler{service: svc}
}

// List godoc
// @Summary List supervisors
// @Tags Supervisors
// @Produce json
// @Param type query string false "Supervisor type"
// @Param active query bool false "Active flag"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /supervisors [get]
func (h *SupervisorHandler) List(c *gin.Context) {
	filter := models.SupervisorFilter{
		Type:      models.SupervisorType(c.Query("type")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid active flag"))
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	supervisors, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, supervisors, pagination)
}

// Get godoc
// @Summary Get supervisor
// @Tags Supervisors
// @Produce json
// @Param id path string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisors/{id} [get]
func (h *SupervisorHandler) Get(c *gin.Context) {
	supervisor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, supervisor, nil)
}

// Create godoc
// @Summary Create supervisor
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param payload body service.CreateSupervisorRequest true "Supervisor"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /supervisors [post]
func (h *SupervisorHandler) Create(c *gin.Context) {
	var req service.CreateSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid supervisor payload"))
		return
	}

	supervisor, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, supervisor)
}

// Update godoc
// @Summary Update supervisor
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param id path string true "Supervisor ID"
// @Param payload body service.UpdateSupervisorRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisors/{id} [put]
func (h *SupervisorHandler) Update(c *gin.Context) {
	var req service.UpdateSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid supervisor payload"))
		return
	}

	supervisor, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, supervisor, nil)
}

// Deactivate godoc
// @Summary Deactivate supervisor
// @Description Fails while the supervisor still has students in the current session
// @Tags Supervisors
// @Produce json
// @Param id path string true "Supervisor ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisors/{id} [delete]
func (h *SupervisorHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
