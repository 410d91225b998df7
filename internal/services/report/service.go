// Package report provides the portfolio advisory report
package report

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
)

// Service implements AdvisoryGenerator over a Gemini client.
type Service struct {
	gemini interfaces.GeminiClient
	logger *common.Logger
	now    func() time.Time
}

// NewService creates a new report service. gemini may be nil, in which case
// every report is unavailable.
func NewService(gemini interfaces.GeminiClient, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		gemini: gemini,
		logger: logger,
		now:    time.Now,
	}
}

// Available reports whether a generator is configured.
func (s *Service) Available() bool {
	return s.gemini != nil
}

// GenerateReport asks the model for a structured assessment of holdings.
// It returns nil when there is nothing to assess, no generator is
// configured, or the model fails or answers with something unusable.
// Failures are logged, never returned, and never retried.
func (s *Service) GenerateReport(ctx context.Context, holdings []models.Holding) *models.AdvisoryReport {
	if len(holdings) == 0 {
		s.logger.Debug().Msg("Advisory report skipped: no holdings")
		return nil
	}
	if s.gemini == nil {
		s.logger.Debug().Msg("Advisory report skipped: no generator configured")
		return nil
	}

	start := s.now()
	text, err := s.gemini.GenerateJSON(ctx, buildPrompt(holdings))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Advisory report unavailable: generation failed")
		return nil
	}

	report, err := parseReport(text)
	if err != nil {
		s.logger.Warn().Err(err).Int("response_len", len(text)).Msg("Advisory report unavailable: unusable response")
		return nil
	}
	report.GeneratedAt = s.now()

	s.logger.Info().
		Str("risk_level", report.RiskLevel).
		Float64("confidence", report.ConfidenceScore).
		Dur("elapsed", report.GeneratedAt.Sub(start)).
		Msg("Advisory report generated")

	return report
}

type unusableError string

func (e unusableError) Error() string { return string(e) }

// parseReport decodes the model response, tolerating a surrounding
// markdown code fence.
func parseReport(text string) (*models.AdvisoryReport, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, unusableError("empty response")
	}

	var report models.AdvisoryReport
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return nil, err
	}

	report.RiskLevel = strings.TrimSpace(report.RiskLevel)
	if report.RiskLevel == "" {
		return nil, unusableError("response has no riskLevel")
	}
	if report.ConfidenceScore < 0 {
		report.ConfidenceScore = 0
	}

	return &report, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the info string, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Ensure Service implements AdvisoryGenerator
var _ interfaces.AdvisoryGenerator = (*Service)(nil)
