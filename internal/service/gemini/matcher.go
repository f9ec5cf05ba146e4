package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/platform"
)

const icpSchema = `{
  "type": "object",
  "required": ["match"],
  "properties": {
    "match": {"type": "boolean"},
    "confidence": {"type": "integer", "minimum": 0, "maximum": 100},
    "reason": {"type": "string"}
  }
}`

const icpPrompt = `You are an expert at identifying ideal customer profiles (ICP) for B2B outreach.

Product: %s
Description: %s
Search keywords: %s

Profile to evaluate:
Name: %s
Title: %s
Company: %s
Bio: %s

Does this profile match the ideal customer profile for the product?
Respond ONLY with JSON: {"match": true or false, "confidence": 0-100, "reason": "one sentence"}`

// ICPResult is the screening verdict. Error is set when the verdict is the
// fallback rather than the model's answer.
type ICPResult struct {
	Match      bool   `json:"match"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}

// Matcher screens profiles against a campaign's ideal customer profile.
type Matcher struct {
	generator Generator
	schema    *gojsonschema.Schema
	logger    *zap.Logger
}

func NewMatcher(generator Generator, logger *zap.Logger) (*Matcher, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(icpSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile ICP schema: %w", err)
	}
	return &Matcher{generator: generator, schema: schema, logger: logger}, nil
}

// Match never fails. Generation or parse problems approve the candidate so
// screening cannot block the send pipeline.
func (m *Matcher) Match(ctx context.Context, campaign *models.Campaign, profile *platform.Profile, keywords string) ICPResult {
	prompt := fmt.Sprintf(icpPrompt,
		campaign.ProductName,
		campaign.Description,
		keywords,
		orUnknown(profile.Name),
		orUnknown(profile.Title),
		orUnknown(profile.Company),
		orUnknown(profile.Bio),
	)

	text, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		m.logger.Warn("ICP screening failed, approving candidate",
			zap.String("candidate", profile.ID), zap.Error(err))
		return fallback(err)
	}

	var result ICPResult
	if err := DecodeValidated(text, m.schema, &result); err != nil {
		m.logger.Warn("ICP response unusable, approving candidate",
			zap.String("candidate", profile.ID),
			zap.String("response", text),
			zap.Error(err))
		return fallback(err)
	}
	return result
}

func fallback(err error) ICPResult {
	return ICPResult{Match: true, Error: err.Error()}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
