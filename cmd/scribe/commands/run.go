package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/scanscribe/internal/bootstrap"
	"github.com/kirillkom/scanscribe/internal/config"
	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
)

type runOptions struct {
	pages     string
	resources string
	relayURL  string
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Transcribe and proofread a document",
		Long: "Uploads FILE (an image or a PDF), transcribes the selected pages, proofreads them " +
			"and prints the result page by page. With --resources a study or research link list follows.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind domain.ResourceKind
			if opts.resources != "" {
				parsed, err := domain.ParseResourceKind(opts.resources)
				if err != nil {
					return err
				}
				kind = parsed
			}

			att, err := loadAttachment(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.relayURL != "" {
				cfg.RelayURL = opts.relayURL
			}
			app := bootstrap.New(cfg, "scribe")

			return runPipeline(cmd.Context(), cmd.OutOrStdout(), app.NewWorkflow(), att, opts.pages, kind)
		},
	}
	cmd.Flags().StringVar(&opts.pages, "pages", "all", "page range to transcribe, e.g. 1-5 (PDF only)")
	cmd.Flags().StringVar(&opts.resources, "resources", "", "also generate resources: study or research")
	cmd.Flags().StringVar(&opts.relayURL, "relay-url", "", "base URL of a running relay instead of calling the model directly")
	return cmd
}

func loadAttachment(path string) (*domain.Attachment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.NewAttachmentFromBytes(raw, domain.DetectMimeType(path, raw))
}

// runPipeline drives one workflow through every stage and prints each
// result as it lands. An empty stage ends the run without error.
func runPipeline(
	ctx context.Context,
	out io.Writer,
	workflow ports.Workflow,
	att *domain.Attachment,
	pageRange string,
	kind domain.ResourceKind,
) error {
	workflow.Upload(att)

	if err := workflow.StartTranscription(ctx, pageRange); err != nil {
		return fmt.Errorf("transcription: %s", domain.UserMessage(err))
	}
	if stage := workflow.View().Transcription; stage.Status == domain.StageEmpty {
		_, err := fmt.Fprintln(out, stage.Message)
		return err
	}

	if err := workflow.StartProofreading(ctx); err != nil {
		return fmt.Errorf("proofreading: %s", domain.UserMessage(err))
	}
	if stage := workflow.View().Proofreading; stage.Status == domain.StageEmpty {
		_, err := fmt.Fprintln(out, stage.Message)
		return err
	}
	if err := printPages(out, workflow); err != nil {
		return err
	}

	if kind == "" {
		return nil
	}
	if err := workflow.GenerateResources(ctx, kind); err != nil {
		return fmt.Errorf("resources: %s", domain.UserMessage(err))
	}
	_, err := fmt.Fprintf(out, "\n== Resources (%s) ==\n%s\n", kind, workflow.View().Resources.HTML)
	return err
}

func printPages(out io.Writer, workflow ports.Workflow) error {
	for {
		stage := workflow.View().Proofreading
		if stage.Current != nil {
			if _, err := fmt.Fprintf(out, "== %s ==\n%s\n\n", stage.Label, stage.Current.Content); err != nil {
				return err
			}
		}
		if !stage.HasNext {
			return nil
		}
		workflow.Advance(domain.ViewProofread)
	}
}
