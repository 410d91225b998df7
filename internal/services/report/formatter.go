package report

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/aether/internal/models"
)

// buildPrompt renders holdings as one line per asset followed by the
// requested report shape.
func buildPrompt(holdings []models.Holding) string {
	var sb strings.Builder

	sb.WriteString("Analyze this professional crypto portfolio:\n")
	for _, h := range holdings {
		sb.WriteString(fmt.Sprintf("Asset: %s | Value: $%.2f | ROI: %.2f%% | Alloc: %.2f%%\n",
			h.Symbol, h.MarketValue, h.PnlPercent, h.AllocationPercent))
	}

	sb.WriteString("\nProvide an institutional-grade report including:\n")
	sb.WriteString("1. Risk Assessment (Low/Medium/High/Extreme).\n")
	sb.WriteString("2. Asset Concentration Warning.\n")
	sb.WriteString("3. Rebalancing Strategy (Specific buy/sell suggestions).\n")
	sb.WriteString("4. Sentiment Analysis of the current mix.\n\n")
	sb.WriteString("Return the report in strictly JSON format:\n")
	sb.WriteString(`{
  "riskLevel": string,
  "concentrationRisk": string,
  "rebalanceStrategy": string,
  "marketOutlook": string,
  "confidenceScore": number
}`)
	sb.WriteString("\n")

	return sb.String()
}
