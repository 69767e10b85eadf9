package assets

import (
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

// Manifest is written next to the outputs so servers can find hashed
// file names without parsing the page.
type Manifest struct {
	Hash    string                   `json:"hash"`
	Mode    config.Mode              `json:"mode"`
	Entries map[string]ManifestEntry `json:"entries"`
	// Assets maps a source path to the URL it was emitted or inlined under
	Assets map[string]string `json:"assets"`
	Page   string            `json:"page,omitempty"`
}

type ManifestEntry struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles,omitempty"`
}

func newManifest(result *Result, publicPath string) *Manifest {
	m := &Manifest{
		Hash:    result.Hash,
		Mode:    result.Mode,
		Entries: make(map[string]ManifestEntry, len(result.Bundles)),
		Assets:  make(map[string]string, len(result.Assets)),
		Page:    result.Page,
	}

	for _, b := range result.Bundles {
		entry := ManifestEntry{Scripts: []string{transform.PublicURL(publicPath, b.File)}}
		for _, style := range b.Styles {
			entry.Styles = append(entry.Styles, transform.PublicURL(publicPath, style))
		}
		m.Entries[b.Entry] = entry
	}

	for _, a := range result.Assets {
		if a.Inlined {
			m.Assets[a.Source] = "inline"
			continue
		}
		m.Assets[a.Source] = transform.PublicURL(publicPath, a.File)
	}

	return m
}
