package templates

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendaops/console/pkg/rest"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateTemplate handles POST /templates.
func (h *Handler) CreateTemplate(c echo.Context) error {
	var input CreateTemplateInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	template, apiErr := h.service.CreateTemplate(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusCreated, template)
}

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(c echo.Context) error {
	templates, apiErr := h.service.ListTemplates(c.Request().Context())
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, templates)
}

// GetTemplate handles GET /templates/:id.
func (h *Handler) GetTemplate(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do modelo e obrigatorio")
	}

	template, apiErr := h.service.GetTemplate(c.Request().Context(), id)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, template)
}

// UpdateTemplate handles PUT /templates/:id.
func (h *Handler) UpdateTemplate(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do modelo e obrigatorio")
	}

	var input UpdateTemplateInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	template, apiErr := h.service.UpdateTemplate(c.Request().Context(), id, input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, template)
}

// DeleteTemplate handles DELETE /templates/:id.
func (h *Handler) DeleteTemplate(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do modelo e obrigatorio")
	}

	if apiErr := h.service.DeleteTemplate(c.Request().Context(), id); apiErr != nil {
		return apiErr
	}

	return c.NoContent(http.StatusNoContent)
}
