package conversation

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/autorename/autorename/internal/consts"
	"github.com/autorename/autorename/internal/database"
)

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Message is an HTML text reply. A non-zero EditID asks the transport to
// replace that message instead of sending a new one.
type Message struct {
	Text     string
	Keyboard Keyboard
	EditID   int
}

// PhotoMessage re-sends a stored photo.
type PhotoMessage struct {
	FileID   string
	Caption  string
	Keyboard Keyboard
}

// Delivery is a renamed file ready to go back to the user. Caption is
// Markdown and is omitted when empty.
type Delivery struct {
	File      database.FileRef
	FileName  string
	Caption   string
	Thumbnail *database.Thumbnail
}

// Sender is the outbound half of the transport.
type Sender interface {
	Send(ctx context.Context, chatID int64, m Message) error
	SendPhoto(ctx context.Context, chatID int64, p PhotoMessage) error
	Deliver(ctx context.Context, chatID int64, d Delivery) error
}

func button(text, data string) Button {
	return Button{Text: text, Data: data}
}

func row(buttons ...Button) []Button {
	return buttons
}

func cancelKeyboard(data string) Keyboard {
	return Keyboard{row(button(consts.ButtonCancel, data))}
}

// splitText cuts text into chunks of at most limit runes, preferring line
// boundaries.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		flush()
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen = n
	}
	flush()
	return chunks
}
