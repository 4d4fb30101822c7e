package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// ParseMessage normalizes a live whatsmeow message event into the wire
// client's addressing convention: for group chats From carries the group
// JID and Author the participant; for messages sent from this number To
// carries the destination chat.
func ParseMessage(evt *events.Message) *Message {
	// Strip device/agent suffixes so one contact maps to one counterpart id.
	chat := evt.Info.Chat.ToNonAD().String()
	sender := evt.Info.Sender.ToNonAD().String()

	msg := &Message{
		ID:        evt.Info.ID,
		ChatJID:   chat,
		From:      sender,
		PushName:  evt.Info.PushName,
		Body:      extractTextBody(evt.Message),
		Type:      detectMessageType(evt.Message),
		Timestamp: evt.Info.Timestamp,
		FromMe:    evt.Info.IsFromMe,
	}
	if evt.Info.IsGroup {
		msg.From = chat
		msg.Author = sender
	}
	if evt.Info.IsFromMe {
		msg.To = chat
	}
	return msg
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
