package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/registry"
	"github.com/autoflowhq/autoflow/pkg/services"
)

type APIHandlers struct {
	automationService *services.Automation
	runService        *services.Run
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	automationService *services.Automation,
	runService *services.Run,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		automationService: automationService,
		runService:        runService,
		validator:         validator,
		registry:          registry,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.automationService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Autoflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Autoflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return badRequest(c, "tenant_id query parameter is required")
	}

	automations, err := h.automationService.List(c.Context(), tenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"automations": automations,
		"count":       len(automations),
	})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	automation, err := h.automationService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req SaveAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	automation, warnings, err := h.automationService.Create(c.Context(), h.toServiceRequest(req))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AutomationResponse{
		Automation: automation,
		Warnings:   warnings,
	})
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req SaveAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	automation, warnings, err := h.automationService.Update(c.Context(), id, h.toServiceRequest(req))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AutomationResponse{
		Automation: automation,
		Warnings:   warnings,
	})
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	if err := h.automationService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableAutomation(c fiber.Ctx) error {
	return h.setEnabled(c, true)
}

func (h *APIHandlers) DisableAutomation(c fiber.Ctx) error {
	return h.setEnabled(c, false)
}

func (h *APIHandlers) setEnabled(c fiber.Ctx, enabled bool) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	automation, err := h.automationService.SetEnabled(c.Context(), id, enabled)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

// CreateTrigger ingests a trigger signal and queues runs for every enabled
// automation it matches.
func (h *APIHandlers) CreateTrigger(c fiber.Ctx) error {
	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.runService.Trigger(c.Context(), models.TriggerRequest{
		SourceType:   models.TriggerType(req.SourceType),
		TenantID:     req.TenantID,
		AutomationID: req.AutomationID,
		EventName:    req.EventName,
		TickAt:       req.TickAt,
		Payload:      req.Payload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

// TestAutomation executes an automation inline in test mode and returns the
// finished run, step trace included, for the editor's test dialog.
func (h *APIHandlers) TestAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req TestRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	run, err := h.runService.Test(c.Context(), id, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	automationID := c.Query("automation_id")
	if automationID == "" {
		return badRequest(c, "automation_id query parameter is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	runs, err := h.runService.ListByAutomation(c.Context(), automationID, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

// ListNodeTypes exposes the closed set of node types the editor may use.
func (h *APIHandlers) ListNodeTypes(c fiber.Ctx) error {
	types := h.registry.Types()

	schemas := make(map[string]map[string]any, len(types))

	for _, nodeType := range types {
		factory, err := h.registry.Factory(nodeType)
		if err != nil {
			continue
		}

		schemas[nodeType] = factory.Schema()
	}

	return c.JSON(fiber.Map{
		"node_types": types,
		"schemas":    schemas,
	})
}

func (h *APIHandlers) toServiceRequest(req SaveAutomationRequest) services.SaveAutomationRequest {
	return services.SaveAutomationRequest{
		TenantID:      req.TenantID,
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       req.Enabled,
		TriggerType:   models.TriggerType(req.TriggerType),
		TriggerConfig: req.TriggerConfig,
		Nodes:         req.nodes(),
		Edges:         req.edges(),
	}
}
