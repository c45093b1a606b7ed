// Package llm provides the AI classifier that judges whether a URL is relevant
// to the user's focus goal. It supports OpenAI and Anthropic, with retry logic,
// rate limiting and per-call timeouts.
package llm
