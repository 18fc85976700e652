package handler

import (
	"errors"
	"strings"
	"time"

	"freight-tracker/internal/features/shipments/domain"
	"freight-tracker/internal/features/shipments/service"

	"github.com/gofiber/fiber/v2"
)

// ShipmentHandler handles HTTP requests for shipment lifecycle operations.
type ShipmentHandler struct {
	shipmentService *service.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(shipmentService *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// RegisterRoutes mounts the shipment routes on the given router.
func (h *ShipmentHandler) RegisterRoutes(router fiber.Router) {
	cargas := router.Group("/cargas")
	cargas.Post("/", h.Create)
	cargas.Get("/", h.List)
	cargas.Get("/:id", h.GetByID)
	cargas.Patch("/:id", h.Update)
	cargas.Delete("/:id", h.Delete)
	cargas.Get("/:id/historico", h.History)
	cargas.Post("/:id/entrega", h.MarkDelivered)
	cargas.Post("/:id/cancelamento", h.Cancel)
	cargas.Post("/:id/link-rastreamento", h.GenerateTrackingLink)
}

// Create godoc
// @Summary Create a shipment
// @Description Registers a new freight shipment, geocoding missing coordinates and issuing the tracking link when a driver phone is supplied
// @Tags cargas
// @Accept json
// @Produce json
// @Param carga body domain.ShipmentDraft true "Shipment draft"
// @Success 201 {object} service.CreateResult
// @Failure 400 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /cargas [post]
func (h *ShipmentHandler) Create(c *fiber.Ctx) error {
	var draft domain.ShipmentDraft
	if err := c.BodyParser(&draft); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.shipmentService.Create(c.UserContext(), draft)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// List godoc
// @Summary List shipments
// @Description Lists active shipments, newest first, narrowed by the query filters
// @Tags cargas
// @Produce json
// @Param embarcador_id query string false "Shipper scope"
// @Param status query string false "Comma-separated lifecycle statuses"
// @Param status_prazo query string false "Comma-separated deadline statuses"
// @Param nota_fiscal query string false "Invoice substring"
// @Param origem_uf query string false "Origin state"
// @Param destino_uf query string false "Destination state"
// @Param motorista_nome query string false "Driver name substring"
// @Param placa_veiculo query string false "Plate substring"
// @Success 200 {array} domain.Shipment
// @Router /cargas [get]
func (h *ShipmentHandler) List(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}

	shipments, err := h.shipmentService.List(c.UserContext(), c.Query("embarcador_id"), filter)
	if err != nil {
		return respondServiceError(c, err)
	}
	if shipments == nil {
		shipments = []*domain.Shipment{}
	}
	return c.JSON(shipments)
}

// GetByID godoc
// @Summary Get a shipment
// @Tags cargas
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {object} domain.Shipment
// @Failure 404 {object} ErrorResponse
// @Router /cargas/{id} [get]
func (h *ShipmentHandler) GetByID(c *fiber.Ctx) error {
	shipment, err := h.shipmentService.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(shipment)
}

// Update godoc
// @Summary Edit a shipment
// @Description Applies field edits to a live shipment; terminal shipments are rejected
// @Tags cargas
// @Accept json
// @Produce json
// @Param id path string true "Shipment ID"
// @Param changes body service.ShipmentUpdate true "Field edits"
// @Success 200 {object} domain.Shipment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cargas/{id} [patch]
func (h *ShipmentHandler) Update(c *fiber.Ctx) error {
	var changes service.ShipmentUpdate
	if err := c.BodyParser(&changes); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}

	shipment, err := h.shipmentService.Update(c.UserContext(), c.Params("id"), changes)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(shipment)
}

// Delete godoc
// @Summary Exclude a shipment
// @Description Soft-deletes the shipment; it disappears from queries and aggregates but stays in storage
// @Tags cargas
// @Param id path string true "Shipment ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /cargas/{id} [delete]
func (h *ShipmentHandler) Delete(c *fiber.Ctx) error {
	if err := h.shipmentService.SoftDelete(c.UserContext(), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History godoc
// @Summary Shipment status history
// @Description Returns the audit trail of lifecycle transitions, oldest first
// @Tags cargas
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {array} domain.StatusHistoryEntry
// @Failure 404 {object} ErrorResponse
// @Router /cargas/{id}/historico [get]
func (h *ShipmentHandler) History(c *fiber.Ctx) error {
	entries, err := h.shipmentService.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	if entries == nil {
		entries = []*domain.StatusHistoryEntry{}
	}
	return c.JSON(entries)
}

// MarkDelivered godoc
// @Summary Mark a shipment delivered
// @Description Transitions the shipment to entregue, stamping the delivery time and settling the deadline status
// @Tags cargas
// @Param id path string true "Shipment ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cargas/{id}/entrega [post]
func (h *ShipmentHandler) MarkDelivered(c *fiber.Ctx) error {
	if err := h.shipmentService.MarkDelivered(c.UserContext(), c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// cancelRequest carries the cancellation reason.
type cancelRequest struct {
	Reason string `json:"motivo"`
}

// Cancel godoc
// @Summary Cancel a shipment
// @Description Transitions the shipment to cancelada, recording the reason in the audit trail
// @Tags cargas
// @Accept json
// @Param id path string true "Shipment ID"
// @Param body body cancelRequest true "Cancellation reason"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /cargas/{id}/cancelamento [post]
func (h *ShipmentHandler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = "Carga cancelada"
	}

	if err := h.shipmentService.Cancel(c.UserContext(), c.Params("id"), req.Reason); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateTrackingLink godoc
// @Summary Issue the driver tracking link
// @Description Generates (or regenerates) the opaque tracking token and the WhatsApp/SMS share links
// @Tags cargas
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {object} service.ShareLinks
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cargas/{id}/link-rastreamento [post]
func (h *ShipmentHandler) GenerateTrackingLink(c *fiber.Ctx) error {
	links, err := h.shipmentService.GenerateTrackingLink(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(links)
}

// parseFilter builds a domain.Filter from the listing query parameters.
func parseFilter(c *fiber.Ctx) (domain.Filter, error) {
	var filter domain.Filter

	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.LifecycleStatus(s))
	}
	for _, s := range splitCSV(c.Query("status_prazo")) {
		filter.DeadlineStatuses = append(filter.DeadlineStatuses, domain.DeadlineStatus(s))
	}
	filter.Invoice = c.Query("nota_fiscal")
	filter.OriginState = c.Query("origem_uf")
	filter.DestinationState = c.Query("destino_uf")
	filter.DriverName = c.Query("motorista_nome")
	filter.VehiclePlate = c.Query("placa_veiculo")

	for query, target := range map[string]**time.Time{
		"data_carregamento_inicio": &filter.DepartureFrom,
		"data_carregamento_fim":    &filter.DepartureTo,
		"prazo_entrega_inicio":     &filter.DeadlineFrom,
		"prazo_entrega_fim":        &filter.DeadlineTo,
	} {
		raw := c.Query(query)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.Filter{}, errors.New(query + " must be RFC3339")
		}
		*target = &parsed
	}

	return filter, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Message: message,
		RayID:   rayID(c),
	})
}

// respondServiceError maps domain sentinels to HTTP statuses.
func respondServiceError(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsValidation(err):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidToken):
		return respondError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return respondError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTimeout):
		return respondError(c, fiber.StatusGatewayTimeout, err.Error())
	default:
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
