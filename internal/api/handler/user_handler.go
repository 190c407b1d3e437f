package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

// UserHandler serves the caller's profile and the admin user operations.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Profile returns the authenticated caller's identity.
//
// @Summary      Current user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/profile [get]
func (h *UserHandler) Profile(c echo.Context) error {
	caller, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	id, err := h.service.Profile(c.Request().Context(), caller.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: id})
}

// Provision pre-creates a user before their first login.
//
// @Summary      Provision a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      provisionUserRequest  true  "User to provision"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users [post]
func (h *UserHandler) Provision(c echo.Context) error {
	var req provisionUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	id, err := h.service.Provision(c.Request().Context(), ports.ProvisionInput{
		SubjectID:  req.SubjectID,
		Email:      req.Email,
		Role:       domain.Role(req.Role),
		Department: req.Department,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: id})
}

// UpdateRole changes the role of an existing user.
//
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        subjectId  path      string             true  "Identity provider subject id"
// @Param        body       body      updateRoleRequest  true  "New role"
// @Success      200        {object}  userResponse
// @Failure      400        {object}  errorResponse
// @Failure      403        {object}  errorResponse
// @Failure      404        {object}  errorResponse
// @Router       /api/users/role/{subjectId} [patch]
func (h *UserHandler) UpdateRole(c echo.Context) error {
	var req updateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	id, err := h.service.UpdateRole(c.Request().Context(), c.Param("subjectId"), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: id})
}

// bindAndValidate decodes the body into req and runs the echo validator.
// Both failures are validation errors.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	return c.Validate(req)
}
