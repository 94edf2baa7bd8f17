package responder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot/chatpilot/pkg/providers"
)

type scriptedProvider struct {
	replies []string
	errs    []error
	calls   [][]providers.Message
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []providers.Message, model string) (string, error) {
	i := len(p.calls)
	p.calls = append(p.calls, append([]providers.Message(nil), messages...))
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return "ok", nil
}

var testPersona = Persona{OperatorName: "Sam", ContactName: "Alex", Relationship: "sister"}

func TestGenerateAppendsHistory(t *testing.T) {
	p := &scriptedProvider{replies: []string{"  yeah 8 works  "}}
	r := New(p, "gpt-4o", testPersona)

	reply, err := r.Generate(context.Background(), Request{BatchText: "dinner at 8?"})
	require.NoError(t, err)
	assert.Equal(t, "yeah 8 works", reply)

	require.Len(t, p.calls, 1)
	call := p.calls[0]
	assert.Equal(t, providers.RoleSystem, call[0].Role)
	assert.Contains(t, call[0].Content, "named Sam")
	assert.Contains(t, call[0].Content, "sister")
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "dinner at 8?"}, call[len(call)-1])

	assert.Equal(t, []providers.Message{
		{Role: providers.RoleUser, Content: "dinner at 8?"},
		{Role: providers.RoleAssistant, Content: "yeah 8 works"},
	}, r.History())

	_, err = r.Generate(context.Background(), Request{BatchText: "cool"})
	require.NoError(t, err)
	assert.Len(t, p.calls[1], 4, "system, two history turns, incoming")
}

func TestGenerateCorrectsAIMentionOnce(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		"As an AI I can't eat dinner",
		"AI? lol no, I'm just swamped tonight",
	}}
	r := New(p, "gpt-4o", testPersona)

	reply, err := r.Generate(context.Background(), Request{BatchText: "dinner?"})
	require.NoError(t, err)

	require.Len(t, p.calls, 2, "exactly one corrective call even when the correction still mentions AI")
	assert.Equal(t, "AI? lol no, I'm just swamped tonight", reply)

	second := p.calls[1]
	assert.Equal(t, providers.RoleAssistant, second[len(second)-2].Role)
	assert.Equal(t, "As an AI I can't eat dinner", second[len(second)-2].Content)
	assert.Contains(t, second[len(second)-1].Content, "refers to AI")

	history := r.History()
	require.Len(t, history, 2)
	assert.Equal(t, reply, history[1].Content)
	for _, m := range history {
		assert.NotContains(t, m.Content, "As an AI")
	}
}

func TestGenerateIgnoresAIInsideWords(t *testing.T) {
	p := &scriptedProvider{replies: []string{"SAID IT ALREADY, MAINE trip is on"}}
	r := New(p, "gpt-4o", testPersona)
	_, err := r.Generate(context.Background(), Request{BatchText: "trip?"})
	require.NoError(t, err)
	assert.Len(t, p.calls, 1)
}

func TestGenerateFailureLeavesHistory(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("connection reset")}}
	r := New(p, "gpt-4o", testPersona)

	_, err := r.Generate(context.Background(), Request{BatchText: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrGenerationUnavailable)
	assert.Empty(t, r.History())

	p = &scriptedProvider{replies: []string{"   "}}
	r = New(p, "gpt-4o", testPersona)
	_, err = r.Generate(context.Background(), Request{BatchText: "hi"})
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.ErrorIs(t, err, providers.ErrGenerationUnavailable)
}

func TestGenerateRewritesQuestioned(t *testing.T) {
	p := &scriptedProvider{}
	r := New(p, "gpt-4o", testPersona)
	_, err := r.Generate(context.Background(), Request{BatchText: "Questioned “see you at the lake”"})
	require.NoError(t, err)

	last := p.calls[0][len(p.calls[0])-1]
	assert.Equal(t, "I don't understand your previous text... see you at the lake. Can you please provide more information?", last.Content)
	assert.Equal(t, last.Content, r.History()[0].Content)
}

func TestBuildSystemPrompt(t *testing.T) {
	withImage := BuildSystemPrompt(Persona{OperatorName: "Sam", ContactName: "Alex", Relationship: "coworker", Context: "We both work at the bakery."}, true)
	assert.Contains(t, withImage, "bakery")
	assert.Contains(t, withImage, "photo they sent you")

	noImage := BuildSystemPrompt(testPersona, false)
	assert.Contains(t, noImage, "not a picture you can see")
	assert.NotContains(t, noImage, "Context about")
	assert.Contains(t, noImage, "how can I assist you today")
}

func TestRewriteQuestionedLeavesOtherText(t *testing.T) {
	assert.Equal(t, "what time?", RewriteQuestioned("what time?"))
	assert.True(t, strings.HasPrefix(RewriteQuestioned(`Questioned "ok"`), "I don't understand"))
}

func TestRules(t *testing.T) {
	r, err := NewRules([]Rule{
		{Phrase: "How are you", Response: "I'm good, how are you?"},
		{Phrase: "hey", Response: "Hey There!"},
	})
	require.NoError(t, err)

	reply, err := r.Generate(context.Background(), Request{BatchText: "HEY! how are you doing"})
	require.NoError(t, err)
	assert.Equal(t, "I'm good, how are you?", reply)

	_, err = r.Generate(context.Background(), Request{BatchText: "lunch?"})
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = NewRules([]Rule{{Phrase: "", Response: "x"}})
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"phrase":"hey","response":"Hey There!"}]`), 0o600))
	r, err := LoadRules(path)
	require.NoError(t, err)
	reply, err := r.Generate(context.Background(), Request{BatchText: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "Hey There!", reply)
}
