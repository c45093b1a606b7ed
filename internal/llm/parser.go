package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/model"
)

// defaultConfidence is used when the model omits a confidence score.
const defaultConfidence = 80

// verdictPayload is the JSON shape the model is asked to produce per URL.
// Pointers distinguish a missing field from its zero value.
type verdictPayload struct {
	Relevant   *bool    `json:"relevant"`
	Confidence *float64 `json:"confidence"`
	URL        string   `json:"url,omitempty"`
	Reason     string   `json:"reason"`
}

func (p verdictPayload) toVerdict(url string) (model.Verdict, error) {
	if p.Relevant == nil {
		return model.Verdict{}, fmt.Errorf("%w: missing \"relevant\" for %s", common.ErrMalformedAnswer, url)
	}

	confidence := defaultConfidence
	if p.Confidence != nil && *p.Confidence > 0 {
		confidence = model.ClampConfidence(int(*p.Confidence + 0.5))
	}

	return model.Verdict{
		URL:        url,
		Relevant:   *p.Relevant,
		Confidence: confidence,
		Reason:     strings.TrimSpace(p.Reason),
		Source:     model.SourceAI,
	}, nil
}

// parseVerdict decodes a single-URL reply.
func parseVerdict(content, url string) (model.Verdict, error) {
	var payload verdictPayload
	if err := decodeJSON(content, &payload); err != nil {
		return model.Verdict{}, err
	}
	return payload.toVerdict(url)
}

// parseBatch decodes a batch reply and matches entries to the requested URLs.
// Every requested URL must be answered; unrequested entries are ignored.
func parseBatch(content string, urls []string) ([]model.Verdict, error) {
	var payload struct {
		Classifications []verdictPayload `json:"classifications"`
	}
	if err := decodeJSON(content, &payload); err != nil {
		return nil, err
	}

	byURL := make(map[string]verdictPayload, len(payload.Classifications))
	for _, p := range payload.Classifications {
		byURL[p.URL] = p
	}

	verdicts := make([]model.Verdict, 0, len(urls))
	for _, url := range urls {
		p, ok := byURL[url]
		if !ok {
			return nil, fmt.Errorf("%w: no classification returned for %s", common.ErrMalformedAnswer, url)
		}
		v, err := p.toVerdict(url)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// parseIntent decodes an intent analysis reply.
func parseIntent(content, input string) (model.IntentAnalysis, error) {
	var payload struct {
		Confidence        *float64 `json:"confidence"`
		Intent            string   `json:"intent"`
		Keywords          []string `json:"keywords"`
		AllowedCategories []string `json:"allowedCategories"`
		BlockedCategories []string `json:"blockedCategories"`
		SuggestedWebsites []string `json:"suggestedWebsites"`
	}
	if err := decodeJSON(content, &payload); err != nil {
		return model.IntentAnalysis{}, err
	}

	analysis := model.IntentAnalysis{
		Intent:            strings.TrimSpace(payload.Intent),
		Keywords:          nonNil(payload.Keywords),
		AllowedCategories: nonNil(payload.AllowedCategories),
		BlockedCategories: nonNil(payload.BlockedCategories),
		SuggestedWebsites: nonNil(payload.SuggestedWebsites),
		Confidence:        defaultConfidence,
	}
	if analysis.Intent == "" {
		analysis.Intent = input
	}
	if payload.Confidence != nil && *payload.Confidence > 0 {
		analysis.Confidence = model.ClampConfidence(int(*payload.Confidence + 0.5))
	}
	return analysis, nil
}

// decodeJSON unmarshals the first JSON object in content, tolerating markdown
// code fences and surrounding prose.
func decodeJSON(content string, dst any) error {
	cleaned := extractJSONObject(content)
	if cleaned == "" {
		return fmt.Errorf("%w: no JSON object in response", common.ErrMalformedAnswer)
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("%w: %w", common.ErrMalformedAnswer, err)
	}
	return nil
}

// extractJSONObject strips code fences and returns the outermost {...} span.
func extractJSONObject(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
