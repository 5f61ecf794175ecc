package channel

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/ahricool/raise/internal/errors"
)

// Message is the part of an inbound update the chat pipeline reads.
type Message struct {
	MessageID   int
	UserID      string
	Username    string
	FirstName   string
	ChatID      string
	ChatType    string
	Text        string
	Caption     string
	PhotoFileID string
	Date        time.Time
}

// Content is the trimmed text, or the caption when there is no text.
func (m *Message) Content() string {
	if text := strings.TrimSpace(m.Text); text != "" {
		return text
	}
	return strings.TrimSpace(m.Caption)
}

// ParseUpdate decodes a webhook body. It returns a nil message when the update
// carries neither a new nor an edited message.
func ParseUpdate(body []byte) (*Message, error) {
	var update telego.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, errors.Wrap(err, "decode update")
	}
	return FromUpdate(update), nil
}

func FromUpdate(update telego.Update) *Message {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil {
		return nil
	}
	out := &Message{
		MessageID: msg.MessageID,
		ChatID:    formatID(msg.Chat.ID),
		ChatType:  msg.Chat.Type,
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	if msg.Date > 0 {
		out.Date = time.Unix(msg.Date, 0)
	}
	if msg.From != nil {
		out.UserID = formatID(msg.From.ID)
		out.Username = msg.From.Username
		out.FirstName = msg.From.FirstName
	}
	// The last size is the largest.
	if n := len(msg.Photo); n > 0 {
		out.PhotoFileID = msg.Photo[n-1].FileID
	}
	return out
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
