// Package media turns non-text message content into text a language model
// can respond to.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatpilot/chatpilot/pkg/bus"
	"github.com/chatpilot/chatpilot/pkg/providers"
	"github.com/chatpilot/chatpilot/pkg/voice"
)

// ErrMediaDescriptionUnavailable means a message's media could not be turned
// into text. The message is left out of the batch; the loop carries on.
var ErrMediaDescriptionUnavailable = errors.New("media description unavailable")

// ErrEmptyText means a plain message had nothing left after cleanup.
var ErrEmptyText = errors.New("message has no text")

const (
	imagePreamble    = "Respond to this description of an image as if you were viewing the image yourself.  "
	videoPlaceholder = "[They sent you a video. You can't watch videos right now. Reply with a believable, casual excuse for why you can't look at it at the moment.]"
	audioPreamble    = "They sent a voice message saying: "
)

// structural characters stripped from plain text, plus the object
// replacement character the store uses as an attachment placeholder
var bracketReplacer = strings.NewReplacer(
	"[", "", "]", "",
	"{", "", "}", "",
	"<", "", ">", "",
	"￼", "",
)

// StripBrackets removes structural brackets from text.
func StripBrackets(text string) string {
	return strings.TrimSpace(bracketReplacer.Replace(text))
}

type Normalizer struct {
	describer   providers.ImageDescriber
	transcriber voice.Transcriber
	converter   voice.Converter
}

// NewNormalizer accepts nil collaborators; the matching media then degrades
// to an excluded message.
func NewNormalizer(describer providers.ImageDescriber, transcriber voice.Transcriber, converter voice.Converter) *Normalizer {
	return &Normalizer{
		describer:   describer,
		transcriber: transcriber,
		converter:   converter,
	}
}

// Normalize returns msg with Text replaced by a model-ready surrogate.
func (n *Normalizer) Normalize(ctx context.Context, msg bus.InboundMessage) (bus.InboundMessage, error) {
	switch msg.MediaKind {
	case bus.MediaImage:
		return n.image(ctx, msg)
	case bus.MediaVideo:
		msg.Text = videoPlaceholder
		return msg, nil
	case bus.MediaAudio:
		return n.audio(ctx, msg)
	}

	msg.Text = StripBrackets(msg.Text)
	if msg.Text == "" {
		return msg, fmt.Errorf("%w: message %d", ErrEmptyText, msg.ID)
	}
	return msg, nil
}

func (n *Normalizer) image(ctx context.Context, msg bus.InboundMessage) (bus.InboundMessage, error) {
	if n.describer == nil {
		return msg, fmt.Errorf("%w: no image describer configured", ErrMediaDescriptionUnavailable)
	}
	desc, err := n.describer.DescribeImage(ctx, msg.MediaPath)
	if err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMediaDescriptionUnavailable, err)
	}
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return msg, fmt.Errorf("%w: empty image description", ErrMediaDescriptionUnavailable)
	}
	msg.Text = imagePreamble + desc
	return msg, nil
}

func (n *Normalizer) audio(ctx context.Context, msg bus.InboundMessage) (bus.InboundMessage, error) {
	if n.transcriber == nil || !n.transcriber.IsAvailable() {
		return msg, fmt.Errorf("%w: no transcriber configured", ErrMediaDescriptionUnavailable)
	}
	path := msg.MediaPath
	if n.converter != nil {
		converted, cleanup, err := n.converter.Convert(ctx, path)
		if err != nil {
			return msg, fmt.Errorf("%w: %v", ErrMediaDescriptionUnavailable, err)
		}
		defer cleanup()
		path = converted
	}
	result, err := n.transcriber.Transcribe(ctx, path)
	if err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMediaDescriptionUnavailable, err)
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return msg, fmt.Errorf("%w: empty transcript", ErrMediaDescriptionUnavailable)
	}
	msg.Text = audioPreamble + strings.TrimSpace(result.Text)
	return msg, nil
}

// ContainsImage reports whether at least one message is an image.
func ContainsImage(msgs []bus.InboundMessage) bool {
	for _, m := range msgs {
		if m.MediaKind == bus.MediaImage {
			return true
		}
	}
	return false
}

// JoinText concatenates message texts in order with single spaces.
func JoinText(msgs []bus.InboundMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, " ")
}
