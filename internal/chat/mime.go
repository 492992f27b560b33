package chat

import (
	"path/filepath"
	"strings"
)

// DefaultMIMEType is used for extensions outside mimeTypes. It is applied to
// video uploads too; the provider usually still detects the container.
const DefaultMIMEType = "audio/mpeg"

var mimeTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
	"mp4":  "video/mp4",
	"mpeg": "video/mpeg",
	"mov":  "video/quicktime",
}

// MIMETypeFor infers a media type from the file name's extension.
func MIMETypeFor(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return DefaultMIMEType
}
