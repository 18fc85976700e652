package handler

import (
	"errors"
	"time"

	shipments "freight-tracker/internal/features/shipments/domain"
	"freight-tracker/internal/features/tracking/domain"
	"freight-tracker/internal/features/tracking/service"

	"github.com/gofiber/fiber/v2"
)

// TrackingHandler handles the public tracking-link routes.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// RegisterRoutes mounts the tracking routes on the given router.
func (h *TrackingHandler) RegisterRoutes(router fiber.Router) {
	rastreamento := router.Group("/rastreamento")
	rastreamento.Get("/:token", h.PublicView)
	rastreamento.Get("/:token/historico", h.RouteHistory)
	rastreamento.Post("/:token/inicio", h.Start)
	rastreamento.Post("/:token/parada", h.Stop)
	rastreamento.Post("/:token/posicoes", h.PushPosition)
}

// PublicView godoc
// @Summary Public shipment view behind a tracking link
// @Description Resolves the opaque token to the shipment, its freshest position, recomputed progress and the sharing flag
// @Tags rastreamento
// @Produce json
// @Param token path string true "Tracking token"
// @Success 200 {object} service.TrackedShipment
// @Failure 404 {object} ErrorResponse
// @Router /rastreamento/{token} [get]
func (h *TrackingHandler) PublicView(c *fiber.Ctx) error {
	view, err := h.trackingService.PublicView(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondTrackingError(c, err)
	}
	return c.JSON(view)
}

// RouteHistory godoc
// @Summary Route traveled behind a tracking link
// @Description Lists the fixes recorded in the requested window, newest first; defaults to the last 24 hours
// @Tags rastreamento
// @Produce json
// @Param token path string true "Tracking token"
// @Param inicio query string false "Window start (RFC3339)"
// @Param fim query string false "Window end (RFC3339)"
// @Success 200 {array} shipments.PositionFix
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /rastreamento/{token}/historico [get]
func (h *TrackingHandler) RouteHistory(c *fiber.Ctx) error {
	var from, to time.Time
	if raw := c.Query("inicio"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "inicio must be RFC3339")
		}
		from = parsed
	}
	if raw := c.Query("fim"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "fim must be RFC3339")
		}
		to = parsed
	}

	fixes, err := h.trackingService.RouteHistory(c.UserContext(), c.Params("token"), from, to)
	if err != nil {
		return respondTrackingError(c, err)
	}
	if fixes == nil {
		fixes = []*shipments.PositionFix{}
	}
	return c.JSON(fixes)
}

// Start godoc
// @Summary Start a position-capture session
// @Description Captures one fix immediately and then every five minutes until stopped; restarting replaces the running session
// @Tags rastreamento
// @Produce json
// @Param token path string true "Tracking token"
// @Success 202
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /rastreamento/{token}/inicio [post]
func (h *TrackingHandler) Start(c *fiber.Ctx) error {
	if _, err := h.trackingService.StartTracking(c.UserContext(), c.Params("token")); err != nil {
		return respondTrackingError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// Stop godoc
// @Summary Stop the position-capture session
// @Description Cancels the session for the shipment behind the token; no further capture is scheduled
// @Tags rastreamento
// @Param token path string true "Tracking token"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /rastreamento/{token}/parada [post]
func (h *TrackingHandler) Stop(c *fiber.Ctx) error {
	if err := h.trackingService.StopByToken(c.UserContext(), c.Params("token")); err != nil {
		return respondTrackingError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PushPosition godoc
// @Summary Report a browser-captured position
// @Description Appends one fix reported by the driver's browser page
// @Tags rastreamento
// @Accept json
// @Produce json
// @Param token path string true "Tracking token"
// @Param posicao body service.PositionInput true "Position report"
// @Success 201 {object} shipments.PositionFix
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /rastreamento/{token}/posicoes [post]
func (h *TrackingHandler) PushPosition(c *fiber.Ctx) error {
	var input service.PositionInput
	if err := c.BodyParser(&input); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body")
	}

	fix, err := h.trackingService.PushPosition(c.UserContext(), c.Params("token"), input)
	if err != nil {
		return respondTrackingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fix)
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Message: message,
		RayID:   rayID(c),
	})
}

func respondTrackingError(c *fiber.Ctx, err error) error {
	switch {
	case shipments.IsValidation(err):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, shipments.ErrInvalidToken), errors.Is(err, shipments.ErrNotFound):
		return respondError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		return respondError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnsupported):
		return respondError(c, fiber.StatusUnprocessableEntity, err.Error())
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
