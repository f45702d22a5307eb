package domain

import "testing"

func TestNewAttachmentAcceptsImagesAndPDF(t *testing.T) {
	for _, mimeType := range []string{"image/png", "image/jpeg", " Application/PDF "} {
		if _, err := NewAttachment("aGVsbG8=", mimeType); err != nil {
			t.Fatalf("NewAttachment(%q) error = %v", mimeType, err)
		}
	}
}

func TestNewAttachmentRejectsOtherTypes(t *testing.T) {
	_, err := NewAttachment("aGVsbG8=", "text/plain")
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if UserMessage(err) != "Unsupported file type. Please upload an image or a PDF." {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
	if _, err := NewAttachment("not base64!", "image/png"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad payload, got %v", err)
	}
}

func TestAttachmentSize(t *testing.T) {
	att, err := NewAttachmentFromBytes([]byte("hello"), "image/png")
	if err != nil {
		t.Fatalf("NewAttachmentFromBytes() error = %v", err)
	}
	if att.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", att.Size())
	}
}

func TestDetectMimeType(t *testing.T) {
	if got := DetectMimeType("scan.PDF", nil); got != MimeTypePDF {
		t.Fatalf("expected pdf by extension, got %q", got)
	}
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if got := DetectMimeType("scan", png); got != "image/png" {
		t.Fatalf("expected sniffed png, got %q", got)
	}
}
