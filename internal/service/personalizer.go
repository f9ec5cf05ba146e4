package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/gemini"
	"github.com/ifuryst/outreach/internal/service/platform"
	"github.com/ifuryst/outreach/pkg/util"
)

const personalizePrompt = `You are an expert at writing short, personal outreach messages on %s.

Product: %s
Description: %s
Tone: %s
Call to action: %s

Recipient:
Name: %s
Title: %s
Company: %s
About: %s

Base template written by the sender:
%s

Write one personalized direct message (max %d characters) that references the
recipient's background, explains the value briefly, ends with the call to
action and matches the tone. Return ONLY the message text.`

// Personalizer turns a job template and a candidate profile into the text
// that is sent.
type Personalizer struct {
	generator gemini.Generator
	maxLength int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPersonalizer accepts a nil generator, in which case AI requests fall
// back to template substitution.
func NewPersonalizer(generator gemini.Generator, maxLength int, timeout time.Duration, logger *zap.Logger) *Personalizer {
	return &Personalizer{
		generator: generator,
		maxLength: maxLength,
		timeout:   timeout,
		logger:    logger,
	}
}

// TemplateData holds the placeholder values available to templates.
func TemplateData(profile *platform.Profile, campaign *models.Campaign) map[string]string {
	name := profile.Name
	if name == "" {
		name = profile.ID
	}
	return map[string]string{
		"name":     name,
		"username": profile.ID,
		"title":    profile.Title,
		"company":  profile.Company,
		"product":  campaign.ProductName,
		"cta":      campaign.CTAOrDefault(),
	}
}

// UnknownPlaceholders lists the template placeholders TemplateData never
// provides, in order of first appearance.
func UnknownPlaceholders(template string) []string {
	known := TemplateData(&platform.Profile{}, &models.Campaign{})
	var unknown []string
	for _, name := range util.Placeholders(template) {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Personalize always returns text. limit is the platform's message length
// limit, 0 for none.
func (p *Personalizer) Personalize(ctx context.Context, template string, profile *platform.Profile, campaign *models.Campaign, target models.Platform, useAI bool, limit int) string {
	rendered := util.Truncate(util.RenderTemplate(template, TemplateData(profile, campaign)), limit)
	if !useAI || p.generator == nil {
		return rendered
	}

	aiLimit := p.maxLength
	if limit > 0 && (aiLimit <= 0 || limit < aiLimit) {
		aiLimit = limit
	}

	prompt := fmt.Sprintf(personalizePrompt,
		target.DisplayName(),
		campaign.ProductName,
		campaign.Description,
		campaign.ToneOrDefault(),
		campaign.CTAOrDefault(),
		profile.Name,
		profile.Title,
		profile.Company,
		util.Preview(profile.Bio, 300),
		template,
		aiLimit,
	)

	genCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	text, err := p.generator.Generate(genCtx, prompt)
	if err != nil {
		p.logger.Warn("AI personalization failed, using template",
			zap.String("candidate", profile.ID), zap.Error(err))
		return rendered
	}

	text = strings.Trim(strings.TrimSpace(text), `"`)
	if text == "" {
		p.logger.Warn("AI personalization returned empty text, using template",
			zap.String("candidate", profile.ID))
		return rendered
	}
	return util.Truncate(text, aiLimit)
}
