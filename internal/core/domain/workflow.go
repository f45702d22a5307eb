package domain

import "fmt"

type Stage string

const (
	StageTranscription Stage = "transcription"
	StageProofreading  Stage = "proofreading"
	StageResources     Stage = "resources"
)

type StageStatus string

const (
	StageIdle    StageStatus = "idle"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageEmpty   StageStatus = "empty"
	StageFailed  StageStatus = "failed"
)

type ResourceKind string

const (
	ResourceStudy    ResourceKind = "study"
	ResourceResearch ResourceKind = "research"
)

func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case ResourceStudy, ResourceResearch:
		return ResourceKind(s), nil
	default:
		return "", &MessageError{
			Kind:    ErrInvalidInput,
			Message: fmt.Sprintf("unknown resource kind %q (want study or research)", s),
		}
	}
}

// PageView is one of the two independently navigable page sequences.
type PageView string

const (
	ViewTranscribed PageView = "transcribed"
	ViewProofread   PageView = "proofread"
)

func ParsePageView(s string) (PageView, error) {
	switch PageView(s) {
	case ViewTranscribed, ViewProofread:
		return PageView(s), nil
	default:
		return "", &MessageError{
			Kind:    ErrInvalidInput,
			Message: fmt.Sprintf("unknown page view %q (want transcribed or proofread)", s),
		}
	}
}

// AttachmentInfo summarizes an upload without echoing its bytes.
type AttachmentInfo struct {
	MimeType  string `json:"mimeType"`
	SizeBytes int    `json:"sizeBytes"`
	PageCount int    `json:"pageCount,omitempty"`
}

// PagedStageView is what the reader pane of a page-producing stage shows.
type PagedStageView struct {
	Status  StageStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Pages   int         `json:"pages"`
	Cursor  int         `json:"cursor"`
	Current *Page       `json:"current,omitempty"`
	Label   string      `json:"label,omitempty"`
	HasPrev bool        `json:"hasPrev"`
	HasNext bool        `json:"hasNext"`
}

type ResourceView struct {
	Status  StageStatus  `json:"status"`
	Kind    ResourceKind `json:"kind,omitempty"`
	Message string       `json:"message,omitempty"`
	HTML    string       `json:"html,omitempty"`
}

// SessionView is the rendered state of one workflow session.
type SessionView struct {
	ID                   string          `json:"id,omitempty"`
	Attachment           *AttachmentInfo `json:"attachment,omitempty"`
	Transcription        PagedStageView  `json:"transcription"`
	Proofreading         PagedStageView  `json:"proofreading"`
	ProofreadFullText    string          `json:"proofreadFullText,omitempty"`
	Resources            ResourceView    `json:"resources"`
	CanTranscribe        bool            `json:"canTranscribe"`
	CanProofread         bool            `json:"canProofread"`
	CanGenerateResources bool            `json:"canGenerateResources"`
}
