package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
	"gopkg.in/yaml.v2"
)

const (
	frontmatterDelimiter = "---\n"
	reportTimeLayout     = time.RFC3339
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body>
{{.Content}}
</body>
</html>
`

var page = template.Must(template.New("report").Parse(pageTemplate))

// Frontmatter is the YAML header of the markdown report.
type Frontmatter struct {
	Title           string `yaml:"title"`
	RunID           string `yaml:"run_id"`
	StartedAt       string `yaml:"started_at"`
	FinishedAt      string `yaml:"finished_at"`
	Interrupted     bool   `yaml:"interrupted"`
	ArchivesFound   int    `yaml:"archives_found"`
	Imported        int    `yaml:"imported"`
	AlreadyImported int    `yaml:"already_imported"`
	ImportFailed    int    `yaml:"import_failed"`
	FailedArchives  int    `yaml:"failed_archives"`
}

type pageContext struct {
	Title   string
	Content template.HTML
}

// Markdown renders the outcome as a markdown document with a YAML front matter.
func Markdown(outcome *entity.RunOutcome) ([]byte, error) {
	fm := Frontmatter{
		Title:           "Boundary import " + outcome.StartedAt.UTC().Format(reportTimeLayout),
		RunID:           outcome.RunID,
		StartedAt:       formatTime(outcome.StartedAt),
		FinishedAt:      formatTime(outcome.FinishedAt),
		Interrupted:     outcome.Interrupted,
		ArchivesFound:   outcome.ArchivesFound,
		Imported:        len(outcome.Imported),
		AlreadyImported: len(outcome.AlreadyImported),
		ImportFailed:    len(outcome.ImportFailed),
		FailedArchives:  len(outcome.FailedArchives),
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter)
	buf.Write(header)
	buf.WriteString(frontmatterDelimiter)

	fmt.Fprintf(&buf, "\n# %s\n", fm.Title)

	if outcome.Interrupted {
		buf.WriteString("\n> The run was interrupted, lists are partial.\n")
	}

	writeSection(&buf, "Imported", outcome.Imported)
	writeSection(&buf, "Already imported", outcome.AlreadyImported)
	writeSection(&buf, "Import failed", outcome.ImportFailed)
	writeSection(&buf, "Failed archives", outcome.FailedArchives)

	return buf.Bytes(), nil
}

func writeSection(buf *bytes.Buffer, title string, names []string) {
	fmt.Fprintf(buf, "\n## %s (%d)\n\n", title, len(names))

	if len(names) == 0 {
		buf.WriteString("None.\n")

		return
	}

	for _, name := range names {
		fmt.Fprintf(buf, "- `%s`\n", name)
	}
}

// RenderHTML converts a markdown report to a standalone HTML page. The front matter title
// becomes the page title.
func RenderHTML(md []byte) ([]byte, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)

	var body bytes.Buffer

	ctx := parser.NewContext()
	if err := gm.Convert(md, &body, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	var fm Frontmatter
	if data := frontmatter.Get(ctx); data != nil {
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
	}

	var out bytes.Buffer
	if err := page.Execute(&out, &pageContext{Title: fm.Title, Content: template.HTML(body.String())}); err != nil {
		return nil, fmt.Errorf("cannot execute template: %w", err)
	}

	return out.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(reportTimeLayout)
}
