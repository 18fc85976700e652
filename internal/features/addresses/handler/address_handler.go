package handler

import (
	"errors"

	"freight-tracker/internal/features/addresses/domain"
	"freight-tracker/internal/features/addresses/service"

	"github.com/gofiber/fiber/v2"
)

// AddressHandler serves the postal-code lookup used to prefill the
// origin/destination fields of the shipment form.
type AddressHandler struct {
	addressService *service.AddressService
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(addressService *service.AddressService) *AddressHandler {
	return &AddressHandler{addressService: addressService}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// RegisterRoutes mounts the address routes on the given router.
func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/enderecos/:cep", h.Resolve)
}

// Resolve godoc
// @Summary Resolve a postal code
// @Description Looks up an 8-digit CEP and returns street, neighborhood, city and state
// @Tags enderecos
// @Produce json
// @Param cep path string true "Postal code, digits only or formatted (01310-100)"
// @Success 200 {object} domain.Address
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /enderecos/{cep} [get]
func (h *AddressHandler) Resolve(c *fiber.Ctx) error {
	address, err := h.addressService.Resolve(c.UserContext(), c.Params("cep"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCEP) {
			return respondError(c, fiber.StatusBadRequest, err.Error())
		}
		return respondError(c, fiber.StatusBadGateway, err.Error())
	}
	if address == nil {
		return respondError(c, fiber.StatusNotFound, "CEP not found")
	}
	return c.JSON(address)
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
