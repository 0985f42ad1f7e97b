package domain

// Format selects how a connector should parse outbound text.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// MaxChunkSize is the outbound chunking threshold in characters. Messages
// longer than this are split before dispatch (see runtime.SplitMessage).
const MaxChunkSize = 4000

// Message is one outbound payload queued by a script's send_message call.
// When a message is split into chunks, Buttons and RequestContact ride only
// on the last chunk.
type Message struct {
	Text string `json:"text"`

	// Buttons are simple reply buttons, rendered platform-specifically.
	Buttons []string `json:"buttons,omitempty"`

	Format Format `json:"format,omitempty"`

	// RequestContact signals the platform to prompt the user for a
	// contact/phone share.
	RequestContact bool `json:"request_contact,omitempty"`
}
