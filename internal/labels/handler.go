package labels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/templates"
	"github.com/vendaops/console/pkg/rest"
)

const maxUploadBytes = 20 << 20

// TemplateSource resolves saved mapping templates referenced by id on
// upload requests.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*templates.Template, *rest.ApiErr)
}

type Handler struct {
	service   Service
	templates TemplateSource
}

func NewHandler(service Service, templates TemplateSource) *Handler {
	return &Handler{service: service, templates: templates}
}

// ImportOrders handles POST /labels/import: a multipart spreadsheet upload
// plus a platform name, a saved template or a custom column mapping.
func (h *Handler) ImportOrders(c echo.Context) error {
	filename, data, apiErr := readUpload(c)
	if apiErr != nil {
		return apiErr
	}

	input := ImportOrdersInput{
		Filename:    filename,
		Data:        data,
		Platform:    c.FormValue("platform"),
		ServiceCode: c.FormValue("service_code"),
	}
	if templateID := c.FormValue("template_id"); templateID != "" {
		tpl, apiErr := h.templates.GetTemplate(c.Request().Context(), templateID)
		if apiErr != nil {
			return apiErr
		}
		m := tpl.Mapping
		input.Mapping = &m
	}
	// An inline mapping overrides the template's.
	if raw := c.FormValue("mapping"); raw != "" {
		var m mapping.ColumnMapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return rest.NewUnprocessableEntity("erro ao processar dados")
		}
		input.Mapping = &m
	}

	out, apiErr := h.service.ImportOrders(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, out)
}

// ListOrders handles GET /labels.
func (h *Handler) ListOrders(c echo.Context) error {
	orders, apiErr := h.service.ListOrders(c.Request().Context())
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, orders)
}

// SetPlannedCount handles PUT /labels/:id/planned.
func (h *Handler) SetPlannedCount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do pedido e obrigatorio")
	}

	var input PlannedCountInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	order, apiErr := h.service.SetPlannedCount(c.Request().Context(), id, input.Count)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, order)
}

// IncrementPlannedCount handles POST /labels/:id/planned/increment.
func (h *Handler) IncrementPlannedCount(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do pedido e obrigatorio")
	}

	order, apiErr := h.service.IncrementPlannedCount(c.Request().Context(), id)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, order)
}

// GenerateLabels handles POST /labels/generate.
func (h *Handler) GenerateLabels(c echo.Context) error {
	var input GenerateInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	results, apiErr := h.service.GenerateLabels(c.Request().Context(), input.IDs)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, results)
}

// MergeOrders handles POST /labels/merge.
func (h *Handler) MergeOrders(c echo.Context) error {
	var input MergeInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	merged, apiErr := h.service.MergeOrders(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusCreated, merged)
}

// UnmergeOrder handles POST /labels/:id/unmerge.
func (h *Handler) UnmergeOrder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("identificador do pedido e obrigatorio")
	}

	if apiErr := h.service.UnmergeOrder(c.Request().Context(), id); apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "mesclagem desfeita"})
}

// ExportTracking handles GET /labels/export?ids=...; the query form keeps
// the download usable as a plain browser link.
func (h *Handler) ExportTracking(c echo.Context) error {
	data, apiErr := h.service.ExportTracking(c.Request().Context(), c.QueryParams()["ids"])
	if apiErr != nil {
		return apiErr
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="rastreios.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// PrintSheet handles POST /labels/print, streaming the combined label sheet
// PDF for the selected orders.
func (h *Handler) PrintSheet(c echo.Context) error {
	var input PrintInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	sheet, apiErr := h.service.PrintSheet(c.Request().Context(), input.IDs)
	if apiErr != nil {
		return apiErr
	}

	return c.Blob(http.StatusOK, "application/pdf", sheet)
}

func readUpload(c echo.Context) (string, []byte, *rest.ApiErr) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", nil, rest.NewBadRequestError("arquivo nao fornecido")
	}
	if file.Size > maxUploadBytes {
		return "", nil, rest.NewBadRequestError("arquivo excede o tamanho maximo de 20MB")
	}

	src, err := file.Open()
	if err != nil {
		return "", nil, rest.NewInternalServerError("erro ao abrir arquivo")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, rest.NewInternalServerError("erro ao ler arquivo")
	}
	return file.Filename, data, nil
}
