package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

// LeadHandler handles HTTP requests for lead operations.
type LeadHandler struct {
	service ports.LeadService
}

func NewLeadHandler(service ports.LeadService) *LeadHandler {
	return &LeadHandler{service: service}
}

// List handles GET /api/leads. The result is limited to what the caller's
// role may see.
//
// @Summary      List leads visible to the caller
// @Tags         leads
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Page size (default 20, max 100)"
// @Success      200    {object}  listLeadsResponse
// @Failure      400    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Router       /api/leads [get]
func (h *LeadHandler) List(c echo.Context) error {
	caller, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	var page, limit int
	if err := echo.QueryParamsBinder(c).Int("page", &page).Int("limit", &limit).BindError(); err != nil {
		return fmt.Errorf("%w: page and limit must be integers", domain.ErrValidation)
	}

	result, err := h.service.List(c.Request().Context(), caller, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListLeadsResponse(result))
}

// Create handles POST /api/leads.
//
// @Summary      Create a lead owned by the caller
// @Tags         leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createLeadRequest  true  "Lead details"
// @Success      201   {object}  leadResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /api/leads [post]
func (h *LeadHandler) Create(c echo.Context) error {
	caller, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	var req createLeadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	lead, err := h.service.Create(c.Request().Context(), caller, toCreateLeadInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toLeadResponse(*lead))
}
