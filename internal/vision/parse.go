package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/civicsafe/api/internal/llm"
	"github.com/civicsafe/api/internal/model"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500

	genericTitle       = "Emergency Incident Report"
	genericDescription = "Incident detected in uploaded image. Please provide additional details."
)

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// parseJSON reads a strict {title, reportType, description} object out of a model reply.
func parseJSON(content string) (Analysis, error) {
	cleaned := llm.StripCodeFences(content)
	if m := jsonObjectRe.FindString(cleaned); m != "" {
		cleaned = m
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	title := fieldString(raw, "title")
	reportType := fieldString(raw, "reportType")
	description := fieldString(raw, "description")
	if title == "" || reportType == "" || description == "" {
		return Analysis{}, fmt.Errorf("missing required fields in analysis JSON")
	}

	return Analysis{
		Title:       strings.TrimSpace(truncateRunes(title, maxTitleLength)),
		ReportType:  model.NormalizeIncidentKind(reportType),
		Description: strings.TrimSpace(truncateRunes(description, maxDescriptionLength)),
		Outcome:     OutcomeAnalyzed,
	}, nil
}

func fieldString(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:title|incident)["\s]*:[\s]*["']([^"'\n]+)["']`),
		regexp.MustCompile(`(?i)(?:title|incident)["\s]*:[\s]*([^,\n]+)`),
		regexp.MustCompile(`(?i)"title":\s*"([^"]+)"`),
	}
	typePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:reporttype|type|incident_type)["\s]*:[\s]*["']([^"'\n]+)["']`),
		regexp.MustCompile(`(?i)(?:reporttype|type|incident_type)["\s]*:[\s]*([^,\n]+)`),
		regexp.MustCompile(`(?i)"reportType":\s*"([^"]+)"`),
	}
	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:description|desc)["\s]*:[\s]*["']([^"'\n]+)["']`),
		regexp.MustCompile(`(?i)(?:description|desc)["\s]*:[\s]*([^,\n}]+)`),
		regexp.MustCompile(`(?i)"description":\s*"([^"]+)"`),
	}
)

// extractFields recovers what it can from a reply that is not valid JSON.
// It always returns a usable Analysis.
func extractFields(content string) Analysis {
	title := firstMatch(titlePatterns, content)
	description := firstMatch(descriptionPatterns, content)

	reportType := model.IncidentOther
	if t := firstMatch(typePatterns, content); t != "" {
		reportType = model.NormalizeIncidentKind(t)
	}

	if title == "" {
		title = genericTitle
	}
	if description == "" {
		description = genericDescription
	}

	return Analysis{
		Title:       truncateRunes(title, maxTitleLength),
		ReportType:  reportType,
		Description: truncateRunes(description, maxDescriptionLength),
		Outcome:     OutcomeExtracted,
	}
}

func firstMatch(patterns []*regexp.Regexp, content string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
