package gemini

import (
	"testing"

	"google.golang.org/genai"
)

func TestExtractTextFromResponse_JoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: `{"riskLevel":`},
				{Text: `"Low"}`},
			}},
		}},
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		t.Fatalf("extractTextFromResponse: %v", err)
	}
	if text != `{"riskLevel":"Low"}` {
		t.Errorf("text = %q", text)
	}
}

func TestExtractTextFromResponse_Empty(t *testing.T) {
	cases := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
	}
	for i, resp := range cases {
		if _, err := extractTextFromResponse(resp); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestConfig(t *testing.T) {
	c := &Client{model: DefaultModel}
	if c.config("") != nil {
		t.Error("expected nil config with no options")
	}

	cfg := c.config(jsonMIMEType)
	if cfg == nil || cfg.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON MIME type, got %+v", cfg)
	}
	if cfg.Temperature != nil {
		t.Error("temperature should be unset")
	}

	WithTemperature(0.2)(c)
	cfg = c.config("")
	if cfg == nil || cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %+v", cfg)
	}
}
