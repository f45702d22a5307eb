package domain

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const MimeTypePDF = "application/pdf"

// Attachment is an uploaded document in base64 form. It is never mutated
// after creation.
type Attachment struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// NewAttachment validates an upload. Only images and PDFs are accepted.
func NewAttachment(data, mimeType string) (*Attachment, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !IsSupportedMimeType(mimeType) {
		return nil, &MessageError{
			Kind:    ErrInvalidInput,
			Message: "Unsupported file type. Please upload an image or a PDF.",
		}
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, &MessageError{Kind: ErrInvalidInput, Message: "attachment data is empty"}
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode attachment", err)
	}
	return &Attachment{Data: data, MimeType: mimeType}, nil
}

// NewAttachmentFromBytes encodes raw file content.
func NewAttachmentFromBytes(raw []byte, mimeType string) (*Attachment, error) {
	if len(raw) == 0 {
		return nil, &MessageError{Kind: ErrInvalidInput, Message: "attachment data is empty"}
	}
	return NewAttachment(base64.StdEncoding.EncodeToString(raw), mimeType)
}

func IsSupportedMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || mimeType == MimeTypePDF
}

func (a *Attachment) IsPDF() bool {
	return a != nil && a.MimeType == MimeTypePDF
}

// Bytes decodes the payload.
func (a *Attachment) Bytes() ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil attachment")
	}
	return base64.StdEncoding.DecodeString(a.Data)
}

// Size is the decoded payload length in bytes.
func (a *Attachment) Size() int {
	if a == nil {
		return 0
	}
	return base64.StdEncoding.DecodedLen(len(a.Data)) - strings.Count(a.Data[max(0, len(a.Data)-2):], "=")
}

// DetectMimeType guesses the type of a file read from disk: by extension
// first, then by sniffing the content.
func DetectMimeType(name string, raw []byte) string {
	detected := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if detected == "" {
		detected = http.DetectContentType(raw)
	}
	mimeType, _, _ := strings.Cut(detected, ";")
	return mimeType
}
