package handler

import (
	"errors"
	"strings"
	"time"

	"freight-tracker/internal/features/dashboard/adapters"
	"freight-tracker/internal/features/dashboard/service"
	shipments "freight-tracker/internal/features/shipments/domain"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves the shipper dashboard: the live shipment table,
// the aggregate panel and the websocket stream.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	refresher        *service.Refresher
	hub              *adapters.Hub
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService, refresher *service.Refresher, hub *adapters.Hub) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		refresher:        refresher,
		hub:              hub,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// RegisterRoutes mounts the dashboard routes on the given router.
func (h *DashboardHandler) RegisterRoutes(router fiber.Router) {
	dashboard := router.Group("/dashboard")
	dashboard.Get("/cargas", h.ListShipments)
	dashboard.Get("/metricas", h.Metrics)
	dashboard.Post("/refresh", h.Refresh)
	dashboard.Get("/ws", websocket.New(h.hub.Handle))
}

// ListShipments godoc
// @Summary Dashboard shipment table
// @Description Lists active shipments newest first with their freshest fix and read-time recomputed progress, narrowed by the query filters
// @Tags dashboard
// @Produce json
// @Param embarcador_id query string false "Shipper scope"
// @Param status query string false "Comma-separated lifecycle statuses"
// @Param status_prazo query string false "Comma-separated deadline statuses (applied to the recomputed value)"
// @Param nota_fiscal query string false "Invoice substring"
// @Param origem_uf query string false "Origin state"
// @Param destino_uf query string false "Destination state"
// @Param motorista_nome query string false "Driver name substring"
// @Param placa_veiculo query string false "Plate substring"
// @Success 200 {array} service.ShipmentView
// @Failure 400 {object} ErrorResponse
// @Router /dashboard/cargas [get]
func (h *DashboardHandler) ListShipments(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}

	views, err := h.dashboardService.ListShipments(c.UserContext(), c.Query("embarcador_id"), filter)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	if views == nil {
		views = []service.ShipmentView{}
	}
	return c.JSON(views)
}

// Metrics godoc
// @Summary Dashboard aggregate panel
// @Description Computes the status counters and delivery percentages over every active shipment in scope
// @Tags dashboard
// @Produce json
// @Param embarcador_id query string false "Shipper scope"
// @Success 200 {object} domain.DashboardMetrics
// @Router /dashboard/metricas [get]
func (h *DashboardHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.dashboardService.Metrics(c.UserContext(), c.Query("embarcador_id"))
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(metrics)
}

// Refresh godoc
// @Summary Force a dashboard refresh
// @Description Rebuilds the snapshot immediately and broadcasts it to connected websocket clients
// @Tags dashboard
// @Success 202
// @Router /dashboard/refresh [post]
func (h *DashboardHandler) Refresh(c *fiber.Ctx) error {
	if err := h.refresher.Refresh(c.UserContext()); err != nil {
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// filterFromQuery builds a shipment filter from the dashboard query string.
func filterFromQuery(c *fiber.Ctx) (shipments.Filter, error) {
	var filter shipments.Filter

	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, shipments.LifecycleStatus(s))
	}
	for _, s := range splitCSV(c.Query("status_prazo")) {
		filter.DeadlineStatuses = append(filter.DeadlineStatuses, shipments.DeadlineStatus(s))
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
			return shipments.Filter{}, errors.New(query + " must be RFC3339")
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

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
