// Package budget estimates token usage for chat prompts and trims the
// oldest conversation history so a turn fits the model's context window.
// Backends use different tokenizers, so the estimate is a character
// heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead approximates the per-message framing most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count of msgs, including the
// names and arguments of any tool calls they carry.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += Estimate(tc.Function.Name) + Estimate(tc.Function.Arguments)
		}
	}
	return total
}

// TrimHistory drops history oldest-first until fixed + history fits within
// maxTokens. Messages in fixed are never dropped. The retained history never
// starts with a tool result or an assistant tool call, since a model rejects
// a tool exchange whose opening half was trimmed away.
//
// If fixed alone exceeds the budget the returned history is empty.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	for len(history) > 0 && fixedTokens+EstimateMessages(history) > maxTokens {
		history = history[1:]
	}
	for len(history) > 0 && orphaned(history[0]) {
		history = history[1:]
	}
	return history
}

func orphaned(m *schema.Message) bool {
	return m.Role == schema.Tool || (m.Role == schema.Assistant && len(m.ToolCalls) > 0)
}
