// Package dialog drives the appointment conversation: the booking state
// machine, the view/edit/delete flows over existing appointments, and the
// routing of inbound text to commands, active steps, or intent classification.
package dialog

// Message is one outbound chat message. Keyboard, when present, is a bounded
// single-select layout of option labels; RemoveKeyboard tells the transport to
// drop any keyboard it is still showing.
type Message struct {
	Text           string     `json:"text"`
	Keyboard       [][]string `json:"keyboard,omitempty"`
	RemoveKeyboard bool       `json:"remove_keyboard,omitempty"`
}

// Reply is everything the engine wants sent back for one inbound message.
type Reply struct {
	Messages []Message `json:"messages"`
}

func textMessage(text string) Message {
	return Message{Text: text, RemoveKeyboard: true}
}

func keyboardMessage(text string, keyboard [][]string) Message {
	return Message{Text: text, Keyboard: keyboard}
}

// BuildKeyboard lays options out itemsPerRow per row, in order. A non-empty
// backLabel becomes the final row on its own.
func BuildKeyboard(options []string, itemsPerRow int, backLabel string) [][]string {
	if itemsPerRow < 1 {
		itemsPerRow = 1
	}
	rows := make([][]string, 0, len(options)/itemsPerRow+2)
	for start := 0; start < len(options); start += itemsPerRow {
		end := start + itemsPerRow
		if end > len(options) {
			end = len(options)
		}
		row := make([]string, end-start)
		copy(row, options[start:end])
		rows = append(rows, row)
	}
	if backLabel != "" {
		rows = append(rows, []string{backLabel})
	}
	return rows
}
