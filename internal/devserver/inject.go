package devserver

import (
	"bytes"
	"net/http"
	"path"
	"strconv"
	"strings"
)

var clientTag = []byte(`<script src="` + ClientPath + `"></script>`)

// injectClient adds the live reload client to HTML responses before the
// closing body tag, or at the end when the page has none. Only responses
// that turn out to be a 200 text/html page are buffered; everything else
// streams through untouched.
func injectClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !pageCandidate(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// partial responses of a page would not line up once it is rewritten
		r.Header.Del("Range")
		r.Header.Del("If-Range")

		iw := &injectingWriter{ResponseWriter: w}
		next.ServeHTTP(iw, r)
		iw.finish()
	})
}

// pageCandidate reports whether a request path can be answered with a page:
// a directory, an extensionless route or an .html file.
func pageCandidate(urlPath string) bool {
	if strings.HasSuffix(urlPath, "/") {
		return true
	}
	switch strings.ToLower(path.Ext(urlPath)) {
	case "", ".html", ".htm":
		return true
	default:
		return false
	}
}

// InjectScript inserts tag before the last closing body tag of page.
func InjectScript(page, tag []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(append(bytes.Clone(page), tag...), '\n')
	}

	out := make([]byte, 0, len(page)+len(tag))
	out = append(out, page[:idx]...)
	out = append(out, tag...)
	out = append(out, page[idx:]...)
	return out
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}

// injectingWriter decides on the first write whether the response is a page
// to rewrite. Pages are held back until finish, anything else is passed on.
type injectingWriter struct {
	http.ResponseWriter
	decided   bool
	buffering bool
	code      int
	buf       bytes.Buffer
}

func (iw *injectingWriter) decide(code int) {
	if iw.decided {
		return
	}
	iw.decided = true
	iw.code = code

	if code == http.StatusOK && isHTML(iw.Header().Get("Content-Type")) {
		iw.buffering = true
		return
	}
	iw.ResponseWriter.WriteHeader(code)
}

func (iw *injectingWriter) WriteHeader(code int) {
	iw.decide(code)
}

func (iw *injectingWriter) Write(p []byte) (int, error) {
	iw.decide(http.StatusOK)
	if iw.buffering {
		return iw.buf.Write(p)
	}
	return iw.ResponseWriter.Write(p)
}

func (iw *injectingWriter) Unwrap() http.ResponseWriter {
	return iw.ResponseWriter
}

func (iw *injectingWriter) finish() {
	if !iw.decided {
		// nothing was written; the handler relied on the implicit 200
		iw.decide(http.StatusOK)
	}
	if !iw.buffering {
		return
	}

	body := InjectScript(iw.buf.Bytes(), clientTag)
	h := iw.Header()
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Del("ETag")
	iw.ResponseWriter.WriteHeader(iw.code)
	_, _ = iw.ResponseWriter.Write(body)
}
