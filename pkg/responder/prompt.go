package responder

import (
	"fmt"
	"regexp"
	"strings"
)

// Persona is the identity the model speaks as.
type Persona struct {
	OperatorName string
	ContactName  string
	Relationship string
	Context      string
}

// questionedPattern matches the store's rendering of a "questioned" tapback.
// The whole batch is replaced because the tapback carries no other content.
var questionedPattern = regexp.MustCompile(`(?i)^.*questioned [“"](.*?)[”"].*$`)

// RewriteQuestioned turns a questioned tapback into a plain request for
// clarification about the quoted text.
func RewriteQuestioned(text string) string {
	m := questionedPattern.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return fmt.Sprintf("I don't understand your previous text... %s. Can you please provide more information?", m[1])
}

// BuildSystemPrompt renders the persona instruction for one reply.
func BuildSystemPrompt(p Persona, containsImage bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"You are an imaginative person named %s responding to a text message from a person named %s. "+
			"This person's relationship to %s can be described as %s. "+
			"Your responses should be indistinguishable from a real human's and written the way people actually text.",
		p.OperatorName, p.ContactName, p.OperatorName, p.Relationship)

	if c := strings.TrimSpace(p.Context); c != "" {
		sb.WriteString("\n\nContext about this conversation: ")
		sb.WriteString(c)
	}

	sb.WriteString("\n\n")
	if containsImage {
		sb.WriteString("Their latest messages include a photo they sent you. React to it naturally, as if you are looking at it yourself.")
	} else {
		sb.WriteString("They have not sent you a photo. If a message describes an image, treat it as something they are telling you about, not a picture you can see.")
	}

	sb.WriteString("\n\n" +
		"Do not use phrases like 'how can I assist you today?' or anything that implies assistance or service. " +
		"If asked to do something that can't be done over text, politely explain that you can't right now and give a creative, believable reason. " +
		"The reason can be whimsical but should sound plausible and human. Always stay in character as a real person.")
	return sb.String()
}

func correctionPrompt(reply string) string {
	return fmt.Sprintf("Your message (%s) refers to AI. Please remember to maintain the persona of a human responder in our conversation. "+
		"If you're indicating that you are an AI, rephrase your message to exclude this information. Reply with the rephrased text message only.", reply)
}
