package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/komiyamma/imageplan/internal/app"
)

var addReq struct {
	document    string
	image       string
	link        string
	prompt      string
	promptFile  string
	anchor      string
	description string
	position    string
	suffix      string
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Plan one image and insert its reference",
	Long: `Inserts a reference to the image next to the anchor in the source
document, then appends the request to the ledger.

With --suffix instead of --image the name is derived from the document:
<document stem><suffix>.png under the configured picture dir.

Example:
  imageplan add --doc intro.md --image intro_overview.png \
    --link ./picture/intro_overview.png --anchor "## Overview" --prompt "..."
  imageplan add --doc intro.md --suffix _overview --anchor "## Overview" --prompt-file p.txt`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var batchCmd = &cobra.Command{
	Use:   "batch [requests.json]",
	Short: "Apply a JSON array of requests in order",
	Long: `Reads a JSON array of requests ("-" for stdin):

  [{"source_document": "...", "image_name": "...", "relative_link": "...",
    "payload_text": "...", "anchor": "...", "description": "..."}]

Each request gets its own result; a failed request does not stop the batch.
The command exits non-zero when any request failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	flags := addCmd.Flags()
	flags.StringVar(&addReq.document, "doc", "", "Source document (required)")
	flags.StringVar(&addReq.image, "image", "", "Image file name")
	flags.StringVar(&addReq.link, "link", "", "Relative link written into the document (default: <picture dir>/<image>)")
	flags.StringVar(&addReq.prompt, "prompt", "", "Generation prompt recorded in the ledger")
	flags.StringVar(&addReq.promptFile, "prompt-file", "", "Read the prompt from a file")
	flags.StringVar(&addReq.anchor, "anchor", "", "Text that locates the insertion point (required)")
	flags.StringVar(&addReq.description, "description", "", "Alt text (default: image name without extension)")
	flags.StringVar(&addReq.position, "at", "", "Override --position for this request")
	flags.StringVar(&addReq.suffix, "suffix", "", "Derive the image name from the document stem plus suffix")
	_ = addCmd.MarkFlagRequired("doc")
	_ = addCmd.MarkFlagRequired("anchor")
}

func runAdd(cmd *cobra.Command, args []string) error {
	prompt := addReq.prompt
	if addReq.promptFile != "" {
		data, err := os.ReadFile(addReq.promptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		prompt = strings.TrimRight(string(data), "\r\n")
	}

	var req app.Request
	switch {
	case addReq.image != "":
		link := addReq.link
		if link == "" {
			link = strings.TrimSuffix(cfg.PictureDir, "/") + "/" + addReq.image
		}
		req = app.Request{
			SourceDocument: addReq.document,
			ImageName:      addReq.image,
			RelativeLink:   link,
			PayloadText:    prompt,
			Anchor:         addReq.anchor,
			Description:    addReq.description,
		}
	case addReq.suffix != "":
		req = app.DeriveRequest(addReq.document, addReq.suffix, prompt, addReq.anchor, addReq.description, cfg.PictureDir)
	default:
		return fmt.Errorf("either --image or --suffix is required")
	}
	req.Position = addReq.position

	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.service.Add(cmd.Context(), req)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Status == app.StatusFailed {
		return errFailed
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var reqs []app.Request
	if err := json.NewDecoder(r).Decode(&reqs); err != nil {
		return fmt.Errorf("decode batch file: %w", err)
	}

	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.service.Batch(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Failed() {
		return errFailed
	}
	return nil
}
