package bus

// MediaKind classifies the attachment carried by an inbound message.
type MediaKind string

const (
	MediaNone  MediaKind = "none"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// InboundMessage is one message read from the local store. ID increases
// monotonically with arrival order.
type InboundMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	IsMedia   bool      `json:"is_media"`
	MediaKind MediaKind `json:"media_kind"`
	MediaPath string    `json:"media_path,omitempty"`
}

// Newest returns the highest message id in msgs, or 0 when msgs is empty.
func Newest(msgs []InboundMessage) int64 {
	var id int64
	for _, m := range msgs {
		if m.ID > id {
			id = m.ID
		}
	}
	return id
}

type OutboundMessage struct {
	Channel    string `json:"channel"`
	ChatID     string `json:"chat_id"` // resolved contact address
	Content    string `json:"content"`
	SessionKey string `json:"session_key,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}
