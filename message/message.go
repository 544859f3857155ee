package message

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Template names. Most of them are configuration keys of the [github]
// section; IngestionMessage lives in [slack].
const (
	PRBody               = "pr_body"
	FailedIngestionIssue = "failed_ingestion_issue_body"
	FailedOverviewIssue  = "failed_tarball_overview_issue_body"
	Staged               = "ingest_staged"
	ReviewRequested      = "ingest_pr_opened"
	Approved             = "ingest_approved"
	Rejected             = "ingest_rejected"
	Ingested             = "ingest_done"
	IngestionMessage     = "ingestion_message"
	RunSummary           = "run_summary"
)

// DateFormat is how the date placeholder of annotations is rendered.
const DateFormat = "Jan 02 15:04:05 MST 2006"

//go:embed defaults/*.txt
var embeddedDefaults embed.FS

// placeholder matches a single-brace placeholder such as {tarball} at the
// start of its input.
var placeholder = regexp.MustCompile(`^\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// goAction matches the opening of a Go template action: a field, variable,
// pipeline, function call with arguments, or {{end}} / {{else}}.
var goAction = regexp.MustCompile(`\{\{-?\s*(?:[.$(]|(?:end|else)\s*-?\}\}|[A-Za-z_][A-Za-z0-9_]*\s)`)

// Renderer renders named message templates.
//
// Templates are either Go templates ("{{.tarball}}") or use single-brace
// placeholders ("{tarball}"); the latter are rewritten to the former, so
// existing configuration files keep working. See Convert for how the two
// are told apart.
type Renderer struct {
	texts   map[string]string
	cache   map[string]*template.Template
	funcMap template.FuncMap
}

// NewRenderer creates a renderer over the given name -> text map. Names
// not in texts fall back to the embedded defaults.
func NewRenderer(texts map[string]string) *Renderer {
	r := &Renderer{
		texts:   make(map[string]string, len(texts)),
		cache:   make(map[string]*template.Template),
		funcMap: defaultFuncMap(),
	}
	for name, text := range texts {
		r.texts[name] = text
	}
	return r
}

// Set replaces the text of a template.
func (r *Renderer) Set(name, text string) {
	r.texts[name] = text
	delete(r.cache, name)
}

// AddFunc adds a custom template function.
func (r *Renderer) AddFunc(name string, fn any) {
	r.funcMap[name] = fn
	r.cache = make(map[string]*template.Template)
}

// Has reports whether a template is available.
func (r *Renderer) Has(name string) bool {
	_, err := r.loadRaw(name)
	return err == nil
}

// Render executes template name with vars. Every placeholder must be
// present in vars.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := r.getTemplate(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) getTemplate(name string) (*template.Template, error) {
	if tmpl, ok := r.cache[name]; ok {
		return tmpl, nil
	}

	content, err := r.loadRaw(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).
		Funcs(r.funcMap).
		Option("missingkey=error").
		Parse(Convert(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	r.cache[name] = tmpl
	return tmpl, nil
}

func (r *Renderer) loadRaw(name string) (string, error) {
	if text, ok := r.texts[name]; ok {
		return text, nil
	}
	data, err := embeddedDefaults.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Convert rewrites single-brace placeholders into Go template actions.
//
// A text holding a Go template action ("{{.x}}", "{{if ...}}",
// "{{upper .x}}") is returned as is. Otherwise doubled braces are escapes
// for literal ones: "{{" renders as "{" and "}}" as "}". A bare identifier
// in doubled braces, such as "{{name}}", is therefore literal text and
// never a Go function call.
func Convert(text string) string {
	if goAction.MatchString(text) {
		return text
	}

	var b strings.Builder
	for i := 0; i < len(text); {
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, "{{"):
			b.WriteString(`{{"{"}}`)
			i += 2
		case strings.HasPrefix(rest, "}}"):
			b.WriteByte('}')
			i += 2
		default:
			if m := placeholder.FindStringSubmatch(rest); m != nil {
				b.WriteString("{{." + m[1] + "}}")
				i += len(m[0])
				continue
			}
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String()
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"trim":    strings.TrimSpace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"title":   cases.Title(language.English).String,
		"indent":  indentString,
		"default": defaultValue,
		"bytes":   humanBytes,
		"base":    baseName,
	}
}

// indentString indents all non-empty lines of a string.
func indentString(indent int, s string) string {
	if s == "" {
		return s
	}
	prefix := strings.Repeat(" ", indent)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// defaultValue returns the default if value is empty.
func defaultValue(defaultVal, value any) any {
	if value == nil {
		return defaultVal
	}
	if s, ok := value.(string); ok && s == "" {
		return defaultVal
	}
	return value
}

func humanBytes(v any) string {
	switch n := v.(type) {
	case int:
		return humanize.Bytes(uint64(max(n, 0)))
	case int64:
		return humanize.Bytes(uint64(max(n, 0)))
	case uint64:
		return humanize.Bytes(n)
	default:
		return fmt.Sprint(v)
	}
}

func baseName(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
