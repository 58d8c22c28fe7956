package slack

// Message is the chat.postMessage / chat.update body.
type Message struct {
	Channel     string       `json:"channel"`
	TS          string       `json:"ts,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is the legacy colored attachment carrying the alert.
type Attachment struct {
	Fallback  string   `json:"fallback"`
	Title     string   `json:"title"`
	Color     string   `json:"color,omitempty"`
	TitleLink string   `json:"title_link"`
	Text      string   `json:"text"`
	Actions   []Button `json:"actions"`
}

// Button is an attachment link button.
type Button struct {
	Type string `json:"type"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ThreadReply is a chat.postMessage body posted into the alert thread.
type ThreadReply struct {
	Channel  string  `json:"channel"`
	ThreadTS string  `json:"thread_ts"`
	Blocks   []Block `json:"blocks"`
}

// Block is a Block Kit layout block.
type Block struct {
	Type     string    `json:"type"`
	Elements []Element `json:"elements"`
}

// Element is a Block Kit element; sections nest further elements.
type Element struct {
	Type     string     `json:"type"`
	Text     *string    `json:"text,omitempty"`
	Style    *TextStyle `json:"style,omitempty"`
	Elements []Element  `json:"elements,omitempty"`
}

// TextStyle toggles rich text decoration.
type TextStyle struct {
	Italic bool `json:"italic"`
}

// Reaction is the reactions.add / reactions.remove body.
type Reaction struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
}

// newMessage builds the alert message.
// Params: channel, subject, body, severity color, problem link, and button label.
// Returns: message with one attachment.
func newMessage(channel, subject, text, color, link, buttonText string) Message {
	return Message{
		Channel: channel,
		Attachments: []Attachment{{
			Fallback:  subject,
			Title:     subject,
			Color:     color,
			TitleLink: link,
			Text:      text,
			Actions:   []Button{{Type: "button", Text: buttonText, URL: link}},
		}},
	}
}

// newThreadReply builds the update note posted under the alert message.
// Params: channel, parent timestamp, heading, and italic note text.
// Returns: thread reply.
func newThreadReply(channel, threadTS, heading, note string) ThreadReply {
	return ThreadReply{
		Channel:  channel,
		ThreadTS: threadTS,
		Blocks: []Block{
			{Type: "context", Elements: []Element{{Type: "plain_text", Text: &heading}}},
			{Type: "rich_text", Elements: []Element{{
				Type:     "rich_text_section",
				Elements: []Element{{Type: "text", Text: &note, Style: &TextStyle{Italic: true}}},
			}}},
		},
	}
}
