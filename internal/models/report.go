package models

import "time"

// AdvisoryReport is the structured output of the advisory generator.
type AdvisoryReport struct {
	RiskLevel         string    `json:"riskLevel"`
	ConcentrationRisk string    `json:"concentrationRisk"`
	RebalanceStrategy string    `json:"rebalanceStrategy"`
	MarketOutlook     string    `json:"marketOutlook"`
	ConfidenceScore   float64   `json:"confidenceScore"`
	GeneratedAt       time.Time `json:"generatedAt"`
}
