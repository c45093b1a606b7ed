package llm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/model"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

const (
	classifySystemPrompt = "You decide whether a web page helps the user with their single focus goal. " +
		"For general knowledge sites such as search engines, encyclopedias and Q&A sites, judge the specific content " +
		"(search terms, article topic, URL parameters) rather than the domain. Always respond with valid JSON."
	batchSystemPrompt  = "You classify web pages as relevant or not to the user's focus goal. Always respond with valid JSON."
	intentSystemPrompt = "You analyze what a user wants to focus on. Always respond with valid JSON."
)

// generalKnowledgeSites host content on every topic, so the domain alone says
// nothing about relevance.
var generalKnowledgeSites = []string{
	"google.com", "google.co", "bing.com", "duckduckgo.com", "baidu.com",
	"wikipedia.org", "wikihow.com", "zhihu.com",
	"stackoverflow.com", "stackexchange.com",
	"github.com", "gitlab.com",
	"youtube.com", "medium.com", "reddit.com", "quora.com",
}

func isGeneralKnowledgeSite(domain string) bool {
	for _, site := range generalKnowledgeSites {
		if strings.Contains(domain, site) {
			return true
		}
	}
	return false
}

func strictnessInstruction(s model.Strictness) string {
	switch s {
	case model.StrictnessRelaxed:
		return `Be LENIENT. Allow pages unless they are clearly distracting (entertainment, social media, unrelated shopping).
On general knowledge sites, allow when the search terms or page title relate to the goal.`
	case model.StrictnessStrict:
		return `Be STRICT. Only allow pages that directly help achieve the goal.
Even on general knowledge sites, the specific search terms or topic must be directly relevant.`
	default:
		return `Be BALANCED. Allow pages that are reasonably related to the goal.
On general knowledge sites, check the URL parameters and page title and allow if the content could reasonably help.`
	}
}

// buildClassifyPrompt creates the prompt for a single URL.
func buildClassifyPrompt(req model.ClassificationRequest, focus model.Focus) string {
	domain := pattern.ExtractDomain(req.URL)

	path, query := "", "none"
	if u, err := url.Parse(req.URL); err == nil {
		path = u.Path
		if q := u.Query().Encode(); q != "" {
			query = q
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Focus Goal: %s\n", focus.Intent)
	if len(focus.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(focus.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "Strictness Mode: %s\n\n", focus.Strictness)

	sb.WriteString("Website Analysis:\n")
	fmt.Fprintf(&sb, "- Domain: %s\n", domain)
	fmt.Fprintf(&sb, "- Full URL: %s\n", req.URL)
	fmt.Fprintf(&sb, "- URL Path: %s\n", path)
	fmt.Fprintf(&sb, "- URL Parameters: %s\n", query)
	if req.Title != "" {
		fmt.Fprintf(&sb, "- Page Title: %s\n", req.Title)
	}
	if isGeneralKnowledgeSite(domain) {
		sb.WriteString("- Note: This is a GENERAL KNOWLEDGE site. Judge by the specific content, NOT the domain itself.\n")
	}

	sb.WriteString("\n")
	sb.WriteString(strictnessInstruction(focus.Strictness))
	sb.WriteString(`

Return JSON:
{"relevant": true or false, "confidence": 0-100, "reason": "brief explanation focusing on the specific content"}`)

	return sb.String()
}

// buildBatchPrompt creates one prompt covering every request.
func buildBatchPrompt(reqs []model.ClassificationRequest, focus model.Focus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Focus Goal: %s\n", focus.Intent)
	if len(focus.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(focus.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "Strictness Mode: %s\n\n", focus.Strictness)
	sb.WriteString(strictnessInstruction(focus.Strictness))
	sb.WriteString("\n\nClassify these pages as relevant or not:\n")

	for _, req := range reqs {
		if req.Title != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", req.URL, req.Title)
		} else {
			fmt.Fprintf(&sb, "- %s\n", req.URL)
		}
	}

	sb.WriteString(`
Return JSON with one entry per URL, copying each URL exactly:
{"classifications": [{"url": "...", "relevant": true or false, "confidence": 0-100, "reason": "..."}]}`)

	return sb.String()
}

// buildIntentPrompt asks the model to expand a free-form focus goal.
func buildIntentPrompt(input string) string {
	return fmt.Sprintf(`The user wants to focus on one thing. Analyze their intent.

User said: %q

Return a JSON object with:
{
  "intent": "concise description of what the user wants to focus on",
  "keywords": ["at least 10 relevant keywords, synonyms and domain terms"],
  "allowedCategories": ["website categories that are relevant"],
  "blockedCategories": ["website categories that should be blocked"],
  "suggestedWebsites": ["5-10 relevant websites as bare domains, e.g. docs.python.org"],
  "confidence": 0-100
}`, input)
}
