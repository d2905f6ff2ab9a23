package domain

// Message is a rendered email ready for a transport.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Receipt describes how a message was delivered. PreviewURL is set only when
// the message went to the preview outbox instead of the real relay.
type Receipt struct {
	PreviewURL string `json:"previewUrl,omitempty"`
}
