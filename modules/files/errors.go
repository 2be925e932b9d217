package files

import "errors"

// Sentinel errors for upload storage. The text doubles as the HTTP error
// payload, matching the messages clients already expect.
var (
	// ErrNoFile is returned when the upload carries no data.
	ErrNoFile = errors.New("No file uploaded")

	// ErrFileTooLarge is returned when the payload exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("File too large. Maximum size is 5MB.")

	// ErrTypeNotAllowed is returned for content types outside the allow-list.
	ErrTypeNotAllowed = errors.New("Invalid file type. Only JPEG, PNG, GIF, PDF, and TXT files are allowed.")
)
