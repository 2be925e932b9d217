package collab

// ChatMessage is an immutable chat record. The username is captured at send
// time, not a live reference; timestamps are unix milliseconds to match the
// wire format.
type ChatMessage struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// FileRef is ephemeral metadata for a shared file. It is broadcast once and
// never stored; the bytes live with the files module.
type FileRef struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}
