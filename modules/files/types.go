package files

// MaxFileSize is the upload size cap in bytes.
const MaxFileSize = 5 << 20 // 5 MiB

// ServiceSaveFile is the request-reply service name for storing an upload.
const ServiceSaveFile = "save-file"

// allowedMimeTypes is the upload content-type allow-list.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// StoredFile is the metadata returned for a stored upload. This is the only
// thing the coordination core ever sees of a file.
type StoredFile struct {
	Filename     string `json:"filename"`     // generated storage name
	OriginalName string `json:"originalname"` // sanitized client-supplied name
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

// SaveFileRequest stores an upload on disk.
type SaveFileRequest struct {
	Name        string `json:"name"`
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
}

// SaveFileResponse returns the stored file's metadata.
type SaveFileResponse struct {
	File  StoredFile `json:"file"`
	Error string     `json:"error,omitempty"`
}
