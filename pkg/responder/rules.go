package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoMatch is returned by Rules when no phrase occurs in the batch.
var ErrNoMatch = errors.New("no rule matched")

type Rule struct {
	Phrase   string `json:"phrase"`
	Response string `json:"response"`
}

// Rules answers with canned responses keyed by phrase, matched
// case-insensitively. The first matching rule wins.
type Rules struct {
	rules []Rule
}

func NewRules(rules []Rule) (*Rules, error) {
	for i, r := range rules {
		if strings.TrimSpace(r.Phrase) == "" || strings.TrimSpace(r.Response) == "" {
			return nil, fmt.Errorf("rule %d needs both a phrase and a response", i)
		}
	}
	return &Rules{rules: rules}, nil
}

// LoadRules reads a JSON array of {"phrase", "response"} objects.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	return NewRules(rules)
}

func (r *Rules) Generate(ctx context.Context, req Request) (string, error) {
	text := strings.ToLower(req.BatchText)
	for _, rule := range r.rules {
		if strings.Contains(text, strings.ToLower(rule.Phrase)) {
			return rule.Response, nil
		}
	}
	return "", ErrNoMatch
}

// All returns a copy of the rules in match order.
func (r *Rules) All() []Rule {
	return append([]Rule(nil), r.rules...)
}
