package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siwes-logbook-api/internal/service"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
	"github.com/noah-isme/siwes-logbook-api/pkg/response"
)

// WeekHandler wires HTTP endpoints to the weekly log service.
type WeekHandler struct {
	service *service.WeekService
}

// NewWeekHandler creates a new handler.
func NewWeekHandler(svc *service.WeekService) *WeekHandler {
	return &WeekHandler{service: svc}
}

// Submit godoc
// @Summary Submit weekly log
// @Description Create or resubmit a weekly log entry for the authenticated student
// @Tags Weeks
// @Accept json
// @Produce json
// @Param payload body service.SubmitWeekRequest true "Week submission"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /weeks [post]
func (h *WeekHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	week, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, week)
}

// ListOwn godoc
// @Summary List own weekly logs
// @Description Returns all weekly logs of the authenticated student
// @Tags Weeks
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /weeks [get]
func (h *WeekHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	weeks, err := h.service.ListOwn(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, weeks, nil)
}

// Get godoc
// @Summary Get weekly log
// @Description Returns a single weekly log by id
// @Tags Weeks
// @Produce json
// @Param id path string true "Week ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id} [get]
func (h *WeekHandler) Get(c *gin.Context) {
	week, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, week, nil)
}

// ListByStudent godoc
// @Summary List weekly logs of a student
// @Description Returns all weekly logs of a student, ordered by week number
// @Tags Weeks
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/weeks [get]
func (h *WeekHandler) ListByStudent(c *gin.Context) {
	weeks, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, weeks, nil)
}

// Pending godoc
// @Summary List pending reviews
// @Description Returns submitted weeks awaiting review by the authenticated supervisor
// @Tags Weeks
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /weeks/pending [get]
func (h *WeekHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	weeks, err := h.service.PendingForSupervisor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, weeks, nil)
}

// Review godoc
// @Summary Review weekly log
// @Description Approve or reject a submitted week
// @Tags Weeks
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.ReviewWeekRequest true "Review verdict"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /weeks/{id}/review [post]
func (h *WeekHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	week, err := h.service.Review(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, week, nil)
}

// AdminUpdate godoc
// @Summary Override week content
// @Description Rewrites week content regardless of status (admin only)
// @Tags Weeks
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.AdminUpdateWeekRequest true "Week content"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id} [put]
func (h *WeekHandler) AdminUpdate(c *gin.Context) {
	var req service.AdminUpdateWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	week, err := h.service.AdminUpdate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, week, nil)
}

// AdminSetStatus godoc
// @Summary Override week status
// @Description Forces a week into an arbitrary status (admin only)
// @Tags Weeks
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.AdminSetStatusRequest true "Status override"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id}/status [patch]
func (h *WeekHandler) AdminSetStatus(c *gin.Context) {
	var req service.AdminSetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	week, err := h.service.AdminSetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, week, nil)
}

// AdminDelete godoc
// @Summary Delete weekly log
// @Description Removes a week entry (admin only)
// @Tags Weeks
// @Produce json
// @Param id path string true "Week ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id} [delete]
func (h *WeekHandler) AdminDelete(c *gin.Context) {
	if err := h.service.AdminDelete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
