package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	"github.com/noah-isme/siwes-logbook-api/internal/service"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
	"github.com/noah-isme/siwes-logbook-api/pkg/response"
)

// AssignmentHandler wires HTTP endpoints to the assignment engine.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// AutoAssign godoc
// @Summary Assign supervisor automatically
// @Description Assigns the least loaded active school supervisor to the student
// @Tags Assignments
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /students/{id}/assign [post]
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	var assignedBy *string
	if claims := claimsFromContext(c); claims != nil {
		assignedBy = &claims.UserID
	}

	assignment, err := h.service.AssignAutomatically(c.Request.Context(), c.Param("id"), assignedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, assignment)
}

// Reassign godoc
// @Summary Reassign supervisor manually
// @Description Replaces a student's assignment with an explicit supervisor choice
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.ManualAssignRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	var req service.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	var assignedBy *string
	if claims := claimsFromContext(c); claims != nil {
		assignedBy = &claims.UserID
	}

	assignment, err := h.service.ReassignManually(c.Request.Context(), req, assignedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, assignment)
}

// BulkReplace godoc
// @Summary Replace supervisor's student list
// @Description Swaps a supervisor's full student list for the current session
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.BulkReplaceRequest true "Replacement list"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/bulk [put]
func (h *AssignmentHandler) BulkReplace(c *gin.Context) {
	var req service.BulkReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk assignment payload"))
		return
	}

	var assignedBy *string
	if claims := claimsFromContext(c); claims != nil {
		assignedBy = &claims.UserID
	}

	assignments, err := h.service.ReplaceForSupervisor(c.Request.Context(), req, assignedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assignments, nil)
}

// Loads godoc
// @Summary List supervisor loads
// @Description Returns assignment counts per supervisor for the current session
// @Tags Assignments
// @Produce json
// @Param type query string false "Supervisor type (SCHOOL or INDUSTRY)"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/loads [get]
func (h *AssignmentHandler) Loads(c *gin.Context) {
	supervisorType := models.SupervisorType(c.Query("type"))

	loads, err := h.service.Loads(c.Request.Context(), supervisorType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, loads, nil)
}

// MyStudents godoc
// @Summary List assigned students
// @Description Returns assignments of the authenticated supervisor for the current session
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /assignments/students [get]
func (h *AssignmentHandler) MyStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	details, err := h.service.StudentsForSupervisor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, details, nil)
}
