package pipeline

import "strings"

// MediaKind is the declared kind of an uploaded recording.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Request asks for one recording to be transcribed and analysed.
type Request struct {
	FilePath  string    `json:"filePath"`
	FileType  MediaKind `json:"fileType"`
	FileName  string    `json:"fileName"`
	UserID    string    `json:"userId"`
	MeetingID string    `json:"meetingId,omitempty"`
}

// Client-facing validation messages.
const (
	msgMissingFields   = "Missing required fields: filePath, fileType, fileName, userId"
	msgInvalidFileType = `Invalid fileType. Must be "audio" or "video".`
)

// ValidationError is a malformed request. It is reported before any side
// effect.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks required fields and the media kind. The message lists
// every required field, not only the missing ones.
func (r Request) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"filePath", r.FilePath},
		{"fileType", string(r.FileType)},
		{"fileName", r.FileName},
		{"userId", r.UserID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Message: msgMissingFields, Missing: missing}
	}
	if r.FileType != MediaAudio && r.FileType != MediaVideo {
		return &ValidationError{Message: msgInvalidFileType}
	}
	return nil
}

// ConfigurationError means the service cannot process requests as deployed,
// e.g. no provider credentials were found.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ErrProviderKeyMissing is reported when no Gemini API key was configured.
var ErrProviderKeyMissing = &ConfigurationError{Message: "Gemini API key not configured"}
