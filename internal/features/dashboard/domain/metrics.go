package domain

import (
	"math"
	"time"

	shipments "freight-tracker/internal/features/shipments/domain"
)

// DashboardMetrics is the aggregate panel shown above the shipment table.
// Percentages use the delivered count as denominator and are 0 when nothing
// has been delivered yet.
type DashboardMetrics struct {
	Total     int `json:"total_cargas"`
	InTransit int `json:"cargas_em_transito"`
	Delivered int `json:"cargas_entregues"`
	Cancelled int `json:"cargas_canceladas"`
	// Overdue counts in-transit shipments already past their promised arrival.
	Overdue int `json:"cargas_em_atraso"`

	// Deadline-status counts over every shipment, recomputed at read time.
	OnTime int `json:"cargas_no_prazo"`
	Late   int `json:"cargas_atrasadas"`
	Early  int `json:"cargas_adiantadas"`

	// TotalWeightTons sums the cargo weight across every shipment in scope;
	// DeliveredWeightTons sums the delivered ones only.
	TotalWeightTons     float64 `json:"total_toneladas_transporte"`
	DeliveredWeightTons float64 `json:"total_toneladas_entregues"`

	OnTimePercent float64 `json:"percentual_entrega_prazo"`
	EarlyPercent  float64 `json:"percentual_entrega_adiantada"`
	LatePercent   float64 `json:"percentual_entrega_atrasada"`
}

// ComputeMetrics folds the shipments into the aggregate panel in one pass.
// Timeliness is recomputed at read time from the freshest fix; the stored
// status_prazo is never trusted. lastFixes maps shipment id to its newest fix
// and may omit shipments without one.
func ComputeMetrics(items []*shipments.Shipment, lastFixes map[string]*shipments.PositionFix, now time.Time) DashboardMetrics {
	var m DashboardMetrics
	var onTime, early, late int

	for _, s := range items {
		m.Total++
		m.TotalWeightTons += s.WeightTons

		deadline := shipments.DeadlineStatusAt(s, lastFixes[s.ID], now)
		switch deadline {
		case shipments.DeadlineEarly:
			m.Early++
		case shipments.DeadlineLate:
			m.Late++
		default:
			m.OnTime++
		}

		switch s.Status {
		case shipments.StatusInTransit:
			m.InTransit++
			if deadline == shipments.DeadlineLate {
				m.Overdue++
			}
		case shipments.StatusDelivered:
			m.Delivered++
			m.DeliveredWeightTons += s.WeightTons
			switch deadline {
			case shipments.DeadlineEarly:
				early++
			case shipments.DeadlineLate:
				late++
			default:
				onTime++
			}
		case shipments.StatusCancelled:
			m.Cancelled++
		}
	}

	if m.Delivered > 0 {
		m.OnTimePercent = percent(onTime, m.Delivered)
		m.EarlyPercent = percent(early, m.Delivered)
		m.LatePercent = percent(late, m.Delivered)
	}
	return m
}

func percent(part, total int) float64 {
	return math.Round(float64(part)/float64(total)*1000) / 10
}
