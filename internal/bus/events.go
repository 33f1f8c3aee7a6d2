package bus

import "time"

// Attachment is a binary payload carried alongside a message: an inbound
// photo/document, or an outbound generated report or video.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

type InboundMessage struct {
	Channel     string
	SenderID    string
	ChatID      string
	Content     string
	Timestamp   time.Time
	Attachments []Attachment
	Metadata    map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

type OutboundMessage struct {
	Channel     string
	ChatID      string
	Content     string
	Attachments []Attachment
	Metadata    map[string]any
}
