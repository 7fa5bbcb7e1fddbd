package models

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// NewAttachment returns an attachment with a fresh id and Size set from data.
func NewAttachment(name, mimeType string, data []byte, now time.Time) Attachment {
	return Attachment{
		ID:      uuid.NewString(),
		Name:    name,
		Type:    mimeType,
		Size:    int64(len(data)),
		AddedAt: now,
		Data:    data,
	}
}

// AttachmentFromFile reads path into an attachment. The MIME type is taken
// from the file extension and sniffed from the content when unknown.
func AttachmentFromFile(path string, now time.Time) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)
	mt := mime.TypeByExtension(filepath.Ext(name))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	return NewAttachment(name, mt, data, now), nil
}

// FindAttachment returns the index of the attachment with id, or -1.
func (d Document) FindAttachment(id string) int {
	for i := range d.Attachments {
		if d.Attachments[i].ID == id {
			return i
		}
	}
	return -1
}
