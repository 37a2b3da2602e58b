package export

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// Placeholder is replaced by an entry's payload text in prompt templates.
const Placeholder = "{{INSERT}}"

// PromptFileName maps an image name to its prompt file: the extension is
// swapped for .txt.
func PromptFileName(imageName string) string {
	base := path.Base(strings.TrimSpace(imageName))
	return strings.TrimSuffix(base, path.Ext(base)) + ".txt"
}

// GeneratePrompts writes one prompt file per entry. Files that already exist
// are skipped; entries without an image name or payload are ignored.
func GeneratePrompts(ctx context.Context, entries []ledger.Entry, template string, sink Sink) (Report, error) {
	var report Report
	seen := make(map[string]bool)
	for _, e := range entries {
		if strings.TrimSpace(e.ImageName) == "" || strings.TrimSpace(e.PayloadText) == "" {
			continue
		}
		name := PromptFileName(e.ImageName)
		if seen[name] {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		seen[name] = true

		exists, err := sink.Exists(ctx, name)
		if err != nil {
			return report, err
		}
		if exists {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		content := strings.ReplaceAll(template, Placeholder, e.PayloadText)
		if err := sink.Put(ctx, name, []byte(content)); err != nil {
			return report, fmt.Errorf("write prompt for %s: %w", e.ImageName, err)
		}
		report.Written = append(report.Written, name)
	}
	return report, nil
}
