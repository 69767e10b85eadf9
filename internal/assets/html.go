package assets

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

const defaultPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
{{- range .Meta }}
<meta name="{{ .Name }}" content="{{ .Content }}">
{{- end }}
{{- range .Styles }}
<link href="{{ . }}" rel="stylesheet">
{{- end }}
</head>
<body>
{{- range .Scripts }}
<script src="{{ . }}"></script>
{{- end }}
</body>
</html>
`

// MetaTag is a <meta name content> pair in the generated page.
type MetaTag struct {
	Name    string
	Content string
}

// PageData is passed to the page template.
type PageData struct {
	Title   string
	Meta    []MetaTag
	Scripts []string
	Styles  []string
	Hash    string
	Mode    string
}

func (p *Pipeline) renderPage(result *Result) ([]byte, error) {
	html := p.config.HTML

	data := PageData{
		Title: html.Title,
		Hash:  result.Hash,
		Mode:  result.Mode.String(),
	}

	for _, name := range slices.Sorted(maps.Keys(html.Meta)) {
		data.Meta = append(data.Meta, MetaTag{Name: name, Content: html.Meta[name]})
	}

	for _, b := range result.Bundles {
		for _, style := range b.Styles {
			data.Styles = append(data.Styles, p.pageURL(style, result.Hash))
		}
		data.Scripts = append(data.Scripts, p.pageURL(b.File, result.Hash))
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) pageURL(file, hash string) string {
	ref := transform.PublicURL(p.config.Output.PublicPath, file)
	if p.config.HTML.Hash {
		ref += "?" + hash
	}
	return ref
}

// LoadScripts returns the script and stylesheet URLs for the given entry
// point from the last build.
func (p *Pipeline) LoadScripts(entry string) (scripts []string, styles []string, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.result == nil {
		return nil, nil, ErrNotBuilt
	}

	bundle, ok := p.result.Bundle(entry)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownEntry, entry)
	}

	for _, style := range bundle.Styles {
		styles = append(styles, transform.PublicURL(p.config.Output.PublicPath, style))
	}
	scripts = append(scripts, transform.PublicURL(p.config.Output.PublicPath, bundle.File))

	return scripts, styles, nil
}

// Handler serves the outputs of the last build from memory. Requests for
// a directory fall back to the generated page.
func (p *Pipeline) Handler() http.Handler {
	prefix := "/"
	if strings.HasPrefix(p.config.Output.PublicPath, "/") {
		prefix = strings.TrimSuffix(p.config.Output.PublicPath, "/") + "/"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if rest, ok := strings.CutPrefix("/"+name, prefix); ok {
			name = rest
		}

		p.mu.RLock()
		contents, ok := p.files[name]
		if !ok && (name == "" || strings.HasSuffix(r.URL.Path, "/")) && p.result != nil && p.result.Page != "" {
			name = p.result.Page
			contents, ok = p.files[name]
		}
		built := p.result != nil
		p.mu.RUnlock()

		if !built {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		if !ok {
			http.NotFound(w, r)
			return
		}

		log.Debug().Str("file", name).Msg("Serving asset")

		w.Header().Set("Content-Type", contentType(name))
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(contents))
	})
}

func contentType(name string) string {
	mt := transform.MimeType(name)
	if strings.HasPrefix(mt, "text/") || mt == "application/javascript" || mt == "application/json" {
		return mt + "; charset=utf-8"
	}
	return mt
}
