package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vendaops/console/internal/jobstore"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/templates"
	"github.com/vendaops/console/pkg/rest"
)

// maxUploadBytes caps spreadsheet uploads at 20MB.
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

// StartImport handles POST /imports
// Receives a multipart spreadsheet plus a platform name, a saved template
// or a custom column mapping, and schedules the import.
func (h *Handler) StartImport(c echo.Context) error {
	filename, data, apiErr := readUpload(c)
	if apiErr != nil {
		return apiErr
	}

	input := StartImportInput{
		Filename: filename,
		Data:     data,
		Platform: c.FormValue("platform"),
		StageID:  c.FormValue("stage_id"),
	}

	// A saved template supplies the mapping and, when the request sends no
	// stage of its own, the template's funnel stage.
	if templateID := c.FormValue("template_id"); templateID != "" {
		tpl, apiErr := h.templates.GetTemplate(c.Request().Context(), templateID)
		if apiErr != nil {
			return apiErr
		}
		m := tpl.Mapping
		input.Mapping = &m
		if input.StageID == "" {
			input.StageID = tpl.StageID
		}
	}

	// An inline mapping overrides the template's.
	if raw := c.FormValue("mapping"); raw != "" {
		var m mapping.ColumnMapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return rest.NewUnprocessableEntity("erro ao processar dados")
		}
		input.Mapping = &m
	}

	if raw := c.FormValue("delay_ms"); raw != "" {
		delay, err := strconv.Atoi(raw)
		if err != nil || delay < 0 {
			return rest.NewBadRequestError("intervalo entre linhas invalido")
		}
		input.DelayMS = delay
	}

	job, apiErr := h.service.StartImport(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusAccepted, job)
}

// GetImport handles GET /imports/:id
func (h *Handler) GetImport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("id da importacao e obrigatorio")
	}

	job, apiErr := h.service.GetJob(c.Request().Context(), id)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, job)
}

// ListImports handles GET /imports
func (h *Handler) ListImports(c echo.Context) error {
	jobs, apiErr := h.service.ListJobs(c.Request().Context())
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, jobs)
}

// ResumeImport handles POST /imports/:id/resume
// Receives the original file again and restarts the job from where it
// stopped.
func (h *Handler) ResumeImport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("id da importacao e obrigatorio")
	}

	filename, data, apiErr := readUpload(c)
	if apiErr != nil {
		return apiErr
	}

	job, apiErr := h.service.ResumeImport(c.Request().Context(), ResumeImportInput{
		JobID:    id,
		Filename: filename,
		Data:     data,
	})
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusAccepted, job)
}

// CancelImport handles POST /imports/:id/cancel
func (h *Handler) CancelImport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("id da importacao e obrigatorio")
	}

	if apiErr := h.service.CancelJob(c.Request().Context(), id); apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "cancelamento solicitado"})
}

// DeleteImport handles DELETE /imports/:id
func (h *Handler) DeleteImport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("id da importacao e obrigatorio")
	}

	if apiErr := h.service.DeleteJob(c.Request().Context(), id); apiErr != nil {
		return apiErr
	}

	return c.NoContent(http.StatusNoContent)
}

// DetectMapping handles POST /mappings/detect
// Proposes a column mapping for an uploaded file from its header names.
func (h *Handler) DetectMapping(c echo.Context) error {
	filename, data, apiErr := readUpload(c)
	if apiErr != nil {
		return apiErr
	}

	out, apiErr := h.service.DetectMapping(c.Request().Context(), DetectMappingInput{
		Filename: filename,
		Data:     data,
	})
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, out)
}

// StreamImport handles GET /imports/:id/stream
// Follows one import over Server-Sent Events: a snapshot first, then every
// stored update until the job reaches a terminal status.
func (h *Handler) StreamImport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return rest.NewBadRequestError("id da importacao e obrigatorio")
	}

	// subscribe before the snapshot so no update slips between the two
	updates, cleanup, apiErr := h.service.WatchJob(c.Request().Context(), id)
	if apiErr != nil {
		return apiErr
	}
	defer cleanup()

	job, apiErr := h.service.GetJob(c.Request().Context(), id)
	if apiErr != nil {
		return apiErr
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return rest.NewInternalServerError("streaming nao suportado")
	}

	if writeJobEvent(c, flusher, *job) {
		return nil
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if writeJobEvent(c, flusher, update) {
				return nil
			}

		case <-c.Request().Context().Done():
			// Client disconnected
			return nil
		}
	}
}

// writeJobEvent pushes one SSE frame and reports whether the stream is done.
func writeJobEvent(c echo.Context, flusher http.Flusher, job jobstore.Job) bool {
	data, err := json.Marshal(job)
	if err != nil {
		return false
	}

	event := "progress"
	if job.Status.Terminal() {
		event = "complete"
	}

	fmt.Fprintf(c.Response(), "event: %s\n", event)
	fmt.Fprintf(c.Response(), "data: %s\n\n", data)
	flusher.Flush()

	return job.Status.Terminal()
}

// readUpload pulls the multipart file into memory.
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
