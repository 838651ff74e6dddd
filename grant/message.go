package grant

import "unicode/utf8"

// DefaultMessageText is recorded when a grant is sent without a message.
const DefaultMessageText = "For being awesome!"

// MaxMessageLength is the longest accepted message, counted in characters.
const MaxMessageLength = 500

// Message is either a caller-provided annotation or the default placeholder.
// The zero value is Default.
type Message struct {
	text     string
	provided bool
}

// Default is the absent message.
var Default = Message{}

// Provided wraps caller-supplied text. An empty string, as sent by a command
// whose optional message argument was omitted, resolves to Default.
func Provided(text string) Message {
	if text == "" {
		return Default
	}
	return Message{text: text, provided: true}
}

// IsProvided reports whether the caller supplied text.
func (m Message) IsProvided() bool { return m.provided }

// Text resolves the message to the string stored on the record.
func (m Message) Text() string {
	if !m.provided {
		return DefaultMessageText
	}
	return m.text
}

// Length is the message length in characters.
func (m Message) Length() int {
	return utf8.RuneCountInString(m.Text())
}

// TooLong reports whether the message exceeds MaxMessageLength.
func (m Message) TooLong() bool {
	return m.Length() > MaxMessageLength
}
