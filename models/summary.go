package models

// PriceSummary holds the derived scalar statistics for one time-ordered
// price series. PercentChange is the absolute magnitude of the change from
// oldest to latest and is absent whenever either endpoint lacks a positive
// price; Direction is "increase" or "decrease" and follows the same rule.
type PriceSummary struct {
	TotalRecords  int         `json:"total_records"`
	Latest        PriceRecord `json:"latest"`
	Oldest        PriceRecord `json:"oldest"`
	PercentChange *float64    `json:"percent_change,omitempty"`
	Direction     string      `json:"direction,omitempty"`
}

// SummaryDocument is the exported per-country summary artifact.
type SummaryDocument struct {
	GameID      string       `json:"game_id"`
	Country     string       `json:"country,omitempty"`
	GeneratedAt string       `json:"generated_at"`
	Summary     PriceSummary `json:"summary"`
}
