package domain

import (
	"strings"
	"time"
	"unicode"

	"freight-tracker/internal/core/geo"
)

const (
	// MaxDeliveryWindow is the ceiling on scheduled arrival relative to the
	// scheduled departure, enforced at creation/edit time only.
	MaxDeliveryWindow = 8 * 24 * time.Hour

	// DefaultAvgSpeedKmh is assumed when no average speed is supplied.
	DefaultAvgSpeedKmh = 60.0

	// mobileDigits is the required length of a mobile number after
	// stripping non-digits; the first digit must be '9'.
	mobileDigits = 9
)

// FallbackCoordinate is where a shipment endpoint lands when geocoding fails.
// Availability over accuracy: creation never hard-fails on a geocoder outage.
var FallbackCoordinate = geo.Point{Lat: -15.7942, Lng: -47.8822}

// ShipmentDraft carries the user-submitted fields for creating a shipment.
// Coordinates are optional; missing ones are geocoded lazily.
type ShipmentDraft struct {
	ShipperID          string     `json:"embarcador_id"`
	Invoice            string     `json:"nota_fiscal"`
	OriginCity         string     `json:"origem_cidade"`
	OriginState        string     `json:"origem_uf"`
	OriginAddress      string     `json:"origem_endereco,omitempty"`
	OriginLat          *float64   `json:"origem_lat,omitempty"`
	OriginLng          *float64   `json:"origem_lng,omitempty"`
	DestinationCity    string     `json:"destino_cidade"`
	DestinationState   string     `json:"destino_uf"`
	DestinationAddress string     `json:"destino_endereco,omitempty"`
	DestinationLat     *float64   `json:"destino_lat,omitempty"`
	DestinationLng     *float64   `json:"destino_lng,omitempty"`
	WeightTons         float64    `json:"toneladas"`
	Description        string     `json:"descricao"`
	DepartureAt        time.Time  `json:"data_carregamento"`
	ArrivalDeadline    time.Time  `json:"prazo_entrega"`
	DriverName         string     `json:"motorista_nome,omitempty"`
	DriverPhone        string     `json:"motorista_telefone,omitempty"`
	PhoneIsWhatsApp    bool       `json:"telefone_eh_whatsapp"`
	WhatsAppPhone      string     `json:"telefone_whatsapp,omitempty"`
	VehiclePlate       string     `json:"placa_veiculo,omitempty"`
	AvgSpeedKmh        float64    `json:"velocidade_media_estimada,omitempty"`
}

// Validate rejects a draft synchronously, before any persistence or network
// call. Reasons are human-readable and surfaced verbatim.
func (d *ShipmentDraft) Validate() error {
	if d.Invoice == "" {
		return NewValidationError("nota fiscal is required")
	}
	if d.OriginCity == "" || d.DestinationCity == "" {
		return NewValidationError("origin and destination cities are required")
	}
	if d.OriginState == "" || d.DestinationState == "" {
		return NewValidationError("origin and destination states are required")
	}
	if d.DepartureAt.IsZero() {
		return NewValidationError("departure date is required")
	}
	if d.ArrivalDeadline.IsZero() {
		return NewValidationError("delivery deadline is required")
	}
	if d.ShipperID == "" {
		return NewValidationError("shipper is required")
	}
	if err := ValidateDeliveryWindow(d.DepartureAt, d.ArrivalDeadline); err != nil {
		return err
	}
	if d.DriverPhone != "" {
		if err := ValidateDriverPhones(d.DriverPhone, d.PhoneIsWhatsApp, d.WhatsAppPhone); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDeliveryWindow enforces the 8-day ceiling on the promised arrival.
// A deadline exactly at departure + 8 days is accepted.
func ValidateDeliveryWindow(departure, deadline time.Time) error {
	if deadline.Before(departure) {
		return NewValidationError("delivery deadline precedes the departure date")
	}
	if deadline.Sub(departure) > MaxDeliveryWindow {
		return NewValidationError("delivery deadline exceeds the maximum of 8 days after departure")
	}
	return nil
}

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidMobile reports whether n is a valid mobile number: exactly 9 digits
// after stripping non-digits, starting with '9'.
func IsValidMobile(n string) bool {
	digits := DigitsOnly(n)
	return len(digits) == mobileDigits && digits[0] == '9'
}

// ValidateDriverPhones checks the driver contact rule: the primary number
// must be a valid mobile, and when it is not WhatsApp-capable a secondary
// WhatsApp number must be supplied and pass the same rule.
func ValidateDriverPhones(primary string, primaryIsWhatsApp bool, whatsapp string) error {
	if !IsValidMobile(primary) {
		return NewValidationError("invalid phone: 9 digits required and the first must be 9")
	}
	if !primaryIsWhatsApp {
		if whatsapp == "" {
			return NewValidationError("a WhatsApp-capable phone is required")
		}
		if !IsValidMobile(whatsapp) {
			return NewValidationError("invalid WhatsApp phone: 9 digits required and the first must be 9")
		}
	}
	return nil
}

// Matches reports whether the shipment satisfies every set criterion.
// Used by the in-memory repository; the postgres repository translates the
// same semantics to SQL.
func (f Filter) Matches(s *Shipment) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, s.Status) {
		return false
	}
	if len(f.DeadlineStatuses) > 0 && !containsDeadline(f.DeadlineStatuses, s.DeadlineStatus) {
		return false
	}
	if f.Invoice != "" && !containsFold(s.Invoice, f.Invoice) {
		return false
	}
	if f.OriginState != "" && !strings.EqualFold(s.OriginState, f.OriginState) {
		return false
	}
	if f.DestinationState != "" && !strings.EqualFold(s.DestinationState, f.DestinationState) {
		return false
	}
	if f.DriverName != "" && !containsFold(s.DriverName, f.DriverName) {
		return false
	}
	if f.VehiclePlate != "" && !containsFold(s.VehiclePlate, f.VehiclePlate) {
		return false
	}
	if f.DepartureFrom != nil && s.DepartureAt.Before(*f.DepartureFrom) {
		return false
	}
	if f.DepartureTo != nil && s.DepartureAt.After(*f.DepartureTo) {
		return false
	}
	if f.DeadlineFrom != nil && s.ArrivalDeadline.Before(*f.DeadlineFrom) {
		return false
	}
	if f.DeadlineTo != nil && s.ArrivalDeadline.After(*f.DeadlineTo) {
		return false
	}
	return true
}

func containsStatus(set []LifecycleStatus, v LifecycleStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsDeadline(set []DeadlineStatus, v DeadlineStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
