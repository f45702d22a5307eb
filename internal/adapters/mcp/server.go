package mcpadapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
)

const (
	serverName    = "scanscribe"
	serverVersion = "1.0.0"
)

// Tools exposes one workflow session as MCP tools. The process owns a
// single session; every tool acts on it.
type Tools struct {
	workflow ports.Workflow
	readFile func(string) ([]byte, error)
}

func NewTools(workflow ports.Workflow) *Tools {
	return &Tools{
		workflow: workflow,
		readFile: os.ReadFile,
	}
}

// Server registers the tools on a new MCP server.
func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("load_document",
		mcp.WithDescription("Load an image or PDF from disk as the current document. Clears all previous results."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to load")),
	), t.loadDocument)

	s.AddTool(mcp.NewTool("transcribe",
		mcp.WithDescription("Transcribe the loaded document and return the text page by page."),
		mcp.WithString("page_range", mcp.Description("Pages to transcribe for PDFs, e.g. 1-5. Defaults to all.")),
	), t.transcribe)

	s.AddTool(mcp.NewTool("proofread",
		mcp.WithDescription("Proofread the current transcription and return the corrected pages."),
	), t.proofread)

	s.AddTool(mcp.NewTool("generate_resources",
		mcp.WithDescription("Suggest study or research links for the proofread text."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(string(domain.ResourceStudy), string(domain.ResourceResearch))),
	), t.generateResources)

	s.AddTool(mcp.NewTool("clear",
		mcp.WithDescription("Forget the loaded document and every result."),
	), t.clear)

	return s
}

func (t *Tools) loadDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := t.readFile(path)
	if err != nil {
		return mcp.NewToolResultErrorf("read %s: %v", path, err), nil
	}
	att, err := domain.NewAttachmentFromBytes(raw, domain.DetectMimeType(path, raw))
	if err != nil {
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	t.workflow.Upload(att)

	info := t.workflow.View().Attachment
	text := fmt.Sprintf("Loaded %s (%s, %d bytes)", filepath.Base(path), info.MimeType, info.SizeBytes)
	if info.PageCount > 0 {
		text += fmt.Sprintf(", %d pages", info.PageCount)
	}
	return mcp.NewToolResultText(text), nil
}

func (t *Tools) transcribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.workflow.StartTranscription(ctx, req.GetString("page_range", "")); err != nil {
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	stage := t.workflow.View().Transcription
	if stage.Status == domain.StageEmpty {
		return mcp.NewToolResultText(stage.Message), nil
	}
	return mcp.NewToolResultText(renderPages(t.workflow.Pages(domain.ViewTranscribed))), nil
}

func (t *Tools) proofread(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.workflow.StartProofreading(ctx); err != nil {
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	stage := t.workflow.View().Proofreading
	if stage.Status == domain.StageEmpty {
		return mcp.NewToolResultText(stage.Message), nil
	}
	return mcp.NewToolResultText(renderPages(t.workflow.Pages(domain.ViewProofread))), nil
}

func (t *Tools) generateResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := domain.ParseResourceKind(raw)
	if err != nil {
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	if err := t.workflow.GenerateResources(ctx, kind); err != nil {
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	return mcp.NewToolResultText(t.workflow.View().Resources.HTML), nil
}

func (t *Tools) clear(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.workflow.Clear()
	return mcp.NewToolResultText("Cleared."), nil
}

func renderPages(pages []domain.Page) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[PAGE %s]\n%s", page.PageNumber, page.Content)
	}
	return b.String()
}
