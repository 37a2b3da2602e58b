package inject

import "strings"

// DefaultTemplate renders a bracket-style image reference.
const DefaultTemplate = "![{description}]({link})"

// destinationEscaper percent-encodes the characters that end or break a
// link destination in bracket links and quoted src attributes.
var destinationEscaper = strings.NewReplacer(
	" ", "%20",
	"\t", "%09",
	"<", "%3C",
	">", "%3E",
	"(", "%28",
	")", "%29",
	`"`, "%22",
)

// Markup fills template with description and link. An empty template means
// DefaultTemplate.
func Markup(template, description, link string) string {
	if template == "" {
		template = DefaultTemplate
	}
	r := strings.NewReplacer("{description}", description, "{link}", Destination(link))
	return r.Replace(template)
}

// Destination encodes link for use as a reference target. Readers decode
// percent-encoding before comparing file names.
func Destination(link string) string {
	return destinationEscaper.Replace(strings.TrimSpace(link))
}
