package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
)

const (
	msgTranscribing        = "Transcribing document..."
	msgTranscriptionEmpty  = "Transcription returned no text. Check the selected page range."
	msgProofreading        = "Proofreading all pages..."
	msgProofreadingEmpty   = "Proofreading returned no corrected text."
	msgGeneratingResources = "Analyzing content and fetching links..."
	msgProofreadFirst      = "Please proofread the text first."
	msgUploadFirst         = "Please upload an image or PDF first."
	msgTranscribeFirst     = "Please transcribe the document first."
	resourceFailurePrefix  = "Error generating resources: "
	stageFailurePrefix     = "Error: "
	outcomeSuperseded      = "superseded"
	transcribedLabelSuffix = "Transcribed"
	proofreadLabelSuffix   = "Proofread"
)

type stageState struct {
	status  domain.StageStatus
	message string
}

type resourceState struct {
	status  domain.StageStatus
	kind    domain.ResourceKind
	message string
	html    string
}

// WorkflowController owns one session's workflow state. Stage calls block
// on the model but never hold the lock while waiting, so navigation and
// views stay responsive. Results of calls whose inputs were reset in the
// meantime are discarded.
type WorkflowController struct {
	completer ports.Completer
	inspector ports.DocumentInspector
	observer  ports.StageObserver

	mu      sync.Mutex
	running map[domain.Stage]bool

	// epoch changes on upload and clear; the revisions change whenever the
	// transcript or the proofread text is reset.
	epoch         uint64
	transcriptRev uint64
	proofRev      uint64

	attachment     *domain.Attachment
	attachmentInfo *domain.AttachmentInfo

	transcribedPages  []domain.Page
	transcribedCursor int
	proofreadPages    []domain.Page
	proofreadCursor   int
	proofreadFullText string

	transcription stageState
	proofreading  stageState
	resources     resourceState
}

type WorkflowOption func(*WorkflowController)

func WithDocumentInspector(inspector ports.DocumentInspector) WorkflowOption {
	return func(c *WorkflowController) {
		c.inspector = inspector
	}
}

func WithStageObserver(observer ports.StageObserver) WorkflowOption {
	return func(c *WorkflowController) {
		c.observer = observer
	}
}

func NewWorkflowController(completer ports.Completer, opts ...WorkflowOption) *WorkflowController {
	c := &WorkflowController{
		completer: completer,
		running:   make(map[domain.Stage]bool, 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resetAll()
	return c
}

// Upload replaces the attachment and resets every derived value.
func (c *WorkflowController) Upload(att *domain.Attachment) {
	var info *domain.AttachmentInfo
	if att != nil {
		info = &domain.AttachmentInfo{MimeType: att.MimeType, SizeBytes: att.Size()}
		if att.IsPDF() && c.inspector != nil {
			info.PageCount = c.inspector.PageCount(att)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.resetAll()
	c.attachment = att
	c.attachmentInfo = info
}

// Clear drops the attachment and every derived value.
func (c *WorkflowController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.resetAll()
}

func (c *WorkflowController) resetAll() {
	c.attachment = nil
	c.attachmentInfo = nil
	c.resetTranscript()
	c.transcription = stageState{status: domain.StageIdle}
}

// resetTranscript clears the transcription result and everything derived
// from it.
func (c *WorkflowController) resetTranscript() {
	c.transcribedPages = nil
	c.transcribedCursor = 0
	c.transcriptRev++
	c.resetProof()
	c.proofreading = stageState{status: domain.StageIdle}
}

func (c *WorkflowController) resetProof() {
	c.proofreadPages = nil
	c.proofreadCursor = 0
	c.proofreadFullText = ""
	c.proofRev++
	c.resources = resourceState{status: domain.StageIdle}
}

func (c *WorkflowController) StartTranscription(ctx context.Context, pageRange string) error {
	c.mu.Lock()
	if c.attachment == nil {
		c.mu.Unlock()
		return &domain.MessageError{Kind: domain.ErrPrecondition, Message: msgUploadFirst}
	}
	if c.running[domain.StageTranscription] {
		c.mu.Unlock()
		return stageBusyError(domain.StageTranscription)
	}
	c.running[domain.StageTranscription] = true
	c.resetTranscript()
	c.transcription = stageState{status: domain.StageRunning, message: msgTranscribing}
	epoch, rev := c.epoch, c.transcriptRev
	prompt := buildTranscriptionPrompt(c.attachment, pageRange)
	c.mu.Unlock()

	started := time.Now()
	pages, err := c.completePages(ctx, prompt, "transcription", domain.StageTranscription)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[domain.StageTranscription] = false
	if epoch != c.epoch || rev != c.transcriptRev {
		c.observe(domain.StageTranscription, outcomeSuperseded, started, 0)
		return supersededError(domain.StageTranscription)
	}

	switch {
	case err != nil:
		c.transcription = stageState{status: domain.StageFailed, message: stageFailurePrefix + domain.UserMessage(err)}
		c.observe(domain.StageTranscription, string(domain.StageFailed), started, 0)
		return err
	case len(pages) == 0:
		c.transcription = stageState{status: domain.StageEmpty, message: msgTranscriptionEmpty}
		c.observe(domain.StageTranscription, string(domain.StageEmpty), started, 0)
		return nil
	}
	c.transcribedPages = pages
	c.transcribedCursor = 0
	c.transcription = stageState{status: domain.StageDone}
	c.observe(domain.StageTranscription, string(domain.StageDone), started, len(pages))
	return nil
}

func (c *WorkflowController) StartProofreading(ctx context.Context) error {
	c.mu.Lock()
	if len(c.transcribedPages) == 0 {
		c.mu.Unlock()
		return &domain.MessageError{Kind: domain.ErrPrecondition, Message: msgTranscribeFirst}
	}
	if c.running[domain.StageProofreading] {
		c.mu.Unlock()
		return stageBusyError(domain.StageProofreading)
	}
	c.running[domain.StageProofreading] = true
	c.resetProof()
	c.proofreading = stageState{status: domain.StageRunning, message: msgProofreading}
	epoch, transcriptRev, proofRev := c.epoch, c.transcriptRev, c.proofRev
	prompt := buildProofreadingPrompt(c.transcribedPages)
	c.mu.Unlock()

	started := time.Now()
	pages, err := c.completePages(ctx, prompt, "proofreading", domain.StageProofreading)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[domain.StageProofreading] = false
	if epoch != c.epoch || transcriptRev != c.transcriptRev || proofRev != c.proofRev {
		c.observe(domain.StageProofreading, outcomeSuperseded, started, 0)
		return supersededError(domain.StageProofreading)
	}

	switch {
	case err != nil:
		c.proofreading = stageState{status: domain.StageFailed, message: stageFailurePrefix + domain.UserMessage(err)}
		c.observe(domain.StageProofreading, string(domain.StageFailed), started, 0)
		return err
	case len(pages) == 0:
		c.proofreading = stageState{status: domain.StageEmpty, message: msgProofreadingEmpty}
		c.observe(domain.StageProofreading, string(domain.StageEmpty), started, 0)
		return nil
	}
	c.proofreadPages = pages
	c.proofreadCursor = 0
	c.proofreadFullText = domain.JoinContent(pages)
	c.proofreading = stageState{status: domain.StageDone}
	c.observe(domain.StageProofreading, string(domain.StageDone), started, len(pages))
	return nil
}

func (c *WorkflowController) GenerateResources(ctx context.Context, kind domain.ResourceKind) error {
	if _, err := domain.ParseResourceKind(string(kind)); err != nil {
		return err
	}

	c.mu.Lock()
	if !resourcesAllowed(c.proofreadFullText) {
		c.resources = resourceState{status: domain.StageFailed, kind: kind, message: msgProofreadFirst}
		c.mu.Unlock()
		return &domain.MessageError{Kind: domain.ErrPrecondition, Message: msgProofreadFirst}
	}
	if c.running[domain.StageResources] {
		c.mu.Unlock()
		return stageBusyError(domain.StageResources)
	}
	c.running[domain.StageResources] = true
	c.resources = resourceState{status: domain.StageRunning, kind: kind, message: msgGeneratingResources}
	epoch, proofRev := c.epoch, c.proofRev
	prompt := buildResourcePrompt(kind, c.proofreadFullText)
	c.mu.Unlock()

	started := time.Now()
	markdown, err := c.completer.Complete(ctx, prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[domain.StageResources] = false
	if epoch != c.epoch || proofRev != c.proofRev {
		c.observe(domain.StageResources, outcomeSuperseded, started, 0)
		return supersededError(domain.StageResources)
	}
	if err != nil {
		c.resources = resourceState{
			status:  domain.StageFailed,
			kind:    kind,
			message: resourceFailurePrefix + domain.UserMessage(err),
		}
		c.observe(domain.StageResources, string(domain.StageFailed), started, 0)
		return err
	}
	c.resources = resourceState{
		status: domain.StageDone,
		kind:   kind,
		html:   FormatResources(domain.TrimECMASpace(markdown)),
	}
	c.observe(domain.StageResources, string(domain.StageDone), started, 0)
	return nil
}

// resourcesAllowed rejects empty text and text that is an error string.
func resourcesAllowed(fullText string) bool {
	trimmed := domain.TrimECMASpace(fullText)
	return trimmed != "" && !strings.HasPrefix(trimmed, "Error:")
}

func (c *WorkflowController) completePages(
	ctx context.Context,
	prompt domain.Prompt,
	field string,
	stage domain.Stage,
) ([]domain.Page, error) {
	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parsePageEnvelope(text, field, stage)
}

// Advance moves the cursor of view forward; it does nothing on the last page.
func (c *WorkflowController) Advance(view domain.PageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages, cursor := c.cursorFor(view)
	if cursor != nil && *cursor < len(pages)-1 {
		*cursor++
	}
}

// Retreat moves the cursor of view back; it does nothing on the first page.
func (c *WorkflowController) Retreat(view domain.PageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, cursor := c.cursorFor(view)
	if cursor != nil && *cursor > 0 {
		*cursor--
	}
}

// Pages returns a copy of the pages behind view.
func (c *WorkflowController) Pages(view domain.PageView) []domain.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages, _ := c.cursorFor(view)
	return append([]domain.Page(nil), pages...)
}

func (c *WorkflowController) cursorFor(view domain.PageView) ([]domain.Page, *int) {
	switch view {
	case domain.ViewTranscribed:
		return c.transcribedPages, &c.transcribedCursor
	case domain.ViewProofread:
		return c.proofreadPages, &c.proofreadCursor
	default:
		return nil, nil
	}
}

func (c *WorkflowController) View() domain.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := domain.SessionView{
		Transcription:     pagedView(c.transcription, c.transcribedPages, c.transcribedCursor, transcribedLabelSuffix),
		Proofreading:      pagedView(c.proofreading, c.proofreadPages, c.proofreadCursor, proofreadLabelSuffix),
		ProofreadFullText: c.proofreadFullText,
		Resources: domain.ResourceView{
			Status:  c.resources.status,
			Kind:    c.resources.kind,
			Message: c.resources.message,
			HTML:    c.resources.html,
		},
		CanTranscribe:        c.attachment != nil && !c.running[domain.StageTranscription],
		CanProofread:         len(c.transcribedPages) > 0 && !c.running[domain.StageProofreading],
		CanGenerateResources: resourcesAllowed(c.proofreadFullText) && !c.running[domain.StageResources],
	}
	if c.attachmentInfo != nil {
		info := *c.attachmentInfo
		view.Attachment = &info
	}
	return view
}

func pagedView(state stageState, pages []domain.Page, cursor int, suffix string) domain.PagedStageView {
	out := domain.PagedStageView{
		Status:  state.status,
		Message: state.message,
		Pages:   len(pages),
	}
	if len(pages) == 0 {
		return out
	}
	current := pages[cursor]
	out.Cursor = cursor
	out.Current = &current
	out.Label = fmt.Sprintf("Page %d of %d (%s)", cursor+1, len(pages), suffix)
	out.HasPrev = cursor > 0
	out.HasNext = cursor < len(pages)-1
	return out
}

func (c *WorkflowController) observe(stage domain.Stage, outcome string, started time.Time, pages int) {
	elapsed := time.Since(started)
	slog.Info("workflow_stage",
		"stage", stage,
		"outcome", outcome,
		"pages", pages,
		"duration_ms", elapsed.Milliseconds(),
	)
	if c.observer != nil {
		c.observer.ObserveStage(stage, outcome, elapsed)
	}
}

func stageBusyError(stage domain.Stage) error {
	return &domain.MessageError{
		Kind:    domain.ErrStageBusy,
		Message: fmt.Sprintf("%s is already running", stage),
	}
}

func supersededError(stage domain.Stage) error {
	return &domain.MessageError{
		Kind:    domain.ErrSuperseded,
		Message: fmt.Sprintf("%s result discarded because the document changed", stage),
	}
}
