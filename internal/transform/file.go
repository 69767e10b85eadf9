package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/assetpipe/internal/naming"
)

const defaultMimeType = "application/octet-stream"

// applyFile emits the artifact as a separate output file. The "name"
// option overrides the output asset template.
func applyFile(_ context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error) {
	tmpl, ok := opts.Text("name")
	if !ok || tmpl == "" {
		tmpl = env.AssetFilename
	}
	return Emit(env, a, tmpl)
}

// Emit names the artifact's contents with tmpl, records the emitted file
// and returns a reference artifact pointing at it.
func Emit(env *Env, a *Artifact, tmpl string) (*Artifact, error) {
	name, ext := naming.SplitName(a.Source)

	outPath, err := env.Namer.Name(tmpl, naming.Tokens{
		Name:        name,
		Ext:         ext,
		ContentHash: env.Namer.Digest(a.Contents),
		ChunkHash:   env.Namer.Digest(a.Contents),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Source, err)
	}

	out := *a
	out.Emitted = append(append([]Emitted(nil), a.Emitted...), Emitted{
		Path:     filepath.ToSlash(outPath),
		Contents: a.Contents,
		Source:   a.Source,
	})
	out.Reference = PublicURL(env.PublicPath, outPath)
	out.Kind = KindReference
	out.Inlined = false
	return &out, nil
}

// applyURL inlines the artifact as a base64 data URI. With a positive
// "limit" option, contents larger than the limit are emitted as a file
// instead.
func applyURL(ctx context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error) {
	if limit, ok := opts.Int64("limit"); ok && limit > 0 && int64(len(a.Contents)) > limit {
		return applyFile(ctx, env, a, opts)
	}

	mimeType, ok := opts.Text("mimetype")
	if !ok || mimeType == "" {
		mimeType = MimeType(a.Source)
	}

	out := *a
	out.Reference = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Contents)
	out.Kind = KindReference
	out.Inlined = true
	return &out, nil
}

// MimeType returns the media type for a path's extension without parameters.
func MimeType(path string) string {
	_, ext := naming.SplitName(path)
	if ext == "" {
		return defaultMimeType
	}

	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		return defaultMimeType
	}

	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}

// PublicURL joins the public path and an output-relative file path.
func PublicURL(publicPath, outPath string) string {
	outPath = filepath.ToSlash(outPath)
	if publicPath == "" {
		return outPath
	}
	return strings.TrimSuffix(publicPath, "/") + "/" + strings.TrimPrefix(outPath, "/")
}
