// Package tokens bounds tool results to a token budget before they are
// injected into the conversation.
package tokens

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TruncationMarker is appended to results cut to fit the budget.
const TruncationMarker = "\n[result truncated]"

// Budget truncates text to a maximum number of cl100k tokens. A nil Budget
// passes text through unchanged. It is safe for concurrent use.
type Budget struct {
	codec     tokenizer.Codec
	maxTokens int
}

// NewBudget creates a Budget of maxTokens. It returns nil when maxTokens <= 0.
func NewBudget(maxTokens int) (*Budget, error) {
	if maxTokens <= 0 {
		return nil, nil
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &Budget{codec: codec, maxTokens: maxTokens}, nil
}

// Max returns the token limit, or 0 for a nil Budget.
func (b *Budget) Max() int {
	if b == nil {
		return 0
	}
	return b.maxTokens
}

// Count returns the number of tokens in s. Falls back to a 4-chars-per-token
// estimate if encoding fails.
func (b *Budget) Count(s string) int {
	if b == nil {
		return (len(s) + 3) / 4
	}
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return (len(s) + 3) / 4
	}
	return len(ids)
}

// Truncate returns s cut to the budget and whether it was cut.
func (b *Budget) Truncate(s string) (string, bool) {
	if b == nil {
		return s, false
	}
	ids, _, err := b.codec.Encode(s)
	if err != nil || len(ids) <= b.maxTokens {
		return s, false
	}

	head, err := b.codec.Decode(ids[:b.maxTokens])
	if err != nil {
		return s, false
	}
	// A token boundary can split a multi-byte rune.
	head = strings.ToValidUTF8(head, "")
	return head + TruncationMarker, true
}
