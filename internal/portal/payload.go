package portal

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// SniffMimeType detects the payload's content type when the caller did not
// supply one. Detection never fails; unknown data reports octet-stream.
func SniffMimeType(payload []byte, declared string) string {
	if declared != "" {
		return declared
	}
	return mimetype.Detect(payload).String()
}

// NewObjectKey generates a collision-free object key preserving the
// original file extension.
func NewObjectKey(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return "uploads/" + uuid.New().String() + ext
}
