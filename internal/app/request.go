package app

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// Request asks for one image reference to be planned and injected.
type Request struct {
	SourceDocument string `json:"source_document"`
	ImageName      string `json:"image_name"`
	RelativeLink   string `json:"relative_link"`
	PayloadText    string `json:"payload_text"`
	Anchor         string `json:"anchor"`
	// Description is the alt text of the injected reference; it defaults to
	// the image name without extension.
	Description string `json:"description,omitempty"`
	// Position overrides the configured insertion side ("before"/"after").
	Position string `json:"position,omitempty"`
}

func (r Request) Entry() ledger.Entry {
	return ledger.Entry{
		SourceDocument: strings.TrimSpace(r.SourceDocument),
		ImageName:      strings.TrimSpace(r.ImageName),
		RelativeLink:   strings.TrimSpace(r.RelativeLink),
		PayloadText:    r.PayloadText,
		Anchor:         r.Anchor,
	}
}

func (r Request) description(imageName string) string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return stem(imageName)
}

// DeriveRequest builds a request from a document and a name suffix: the
// image is "<document stem><suffix>.png" and lives in pictureDir, which
// defaults to "./picture".
func DeriveRequest(document, suffix, prompt, anchor, description, pictureDir string) Request {
	document = filepath.ToSlash(strings.TrimSpace(document))
	name := stem(path.Base(document)) + strings.TrimSpace(suffix) + ".png"
	if strings.TrimSpace(pictureDir) == "" {
		pictureDir = "./picture"
	}
	return Request{
		SourceDocument: document,
		ImageName:      name,
		RelativeLink:   strings.TrimSuffix(filepath.ToSlash(pictureDir), "/") + "/" + name,
		PayloadText:    prompt,
		Anchor:         anchor,
		Description:    description,
	}
}

func stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
