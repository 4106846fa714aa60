package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Manifest is the external (JSON) descriptor consumed by `module package`
// and `app package`, naming where each constituent file lives in the
// source filesystem (spec.md §4.3).
type Manifest struct {
	// dir is the directory the manifest file was loaded from; relative
	// URIs resolve against it.
	dir string

	Name            string            `json:"name"`
	Component       string            `json:"component"`
	Metadata        string            `json:"metadata"`
	ConfigSchema    string            `json:"config_schema,omitempty"`
	Config          string            `json:"config,omitempty"`
	SettingsSchema  string            `json:"settings_schema,omitempty"`
	ShareDir        string            `json:"share_dir,omitempty"`
	Icon            string            `json:"icon,omitempty"`
	WWWDir          string            `json:"www_dir,omitempty"`
	Modules         map[string]string `json:"modules,omitempty"` // module name -> sub-manifest path
}

// LoadManifest reads and parses a manifest JSON file at path.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.Wrap(err, "read manifest file")
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, herrors.Wrap(err, "unmarshal manifest")
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// ResolveURI resolves a manifest URI to a local filesystem path. Supported
// schemes: none (implicit file path) and "file:" (spec.md §4.3). Relative
// paths resolve against the manifest's directory.
func (m *Manifest) ResolveURI(uri string) (string, error) {
	if uri == "" {
		return "", herrors.Wrapf(herrors.ErrMisuse, "empty manifest URI")
	}
	p := uri
	if strings.HasPrefix(uri, "file://") {
		p = strings.TrimPrefix(uri, "file://")
	} else if strings.HasPrefix(uri, "file:") {
		p = strings.TrimPrefix(uri, "file:")
	} else if idx := strings.Index(uri, "://"); idx >= 0 {
		return "", herrors.Wrapf(herrors.ErrMisuse, "unsupported manifest URI scheme in %q", uri)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.dir, p)
	}
	return p, nil
}

// VerifyResolvable checks that every URI named by the manifest resolves to
// a readable resource, per spec.md §4.3's build-time invariant.
func (m *Manifest) VerifyResolvable() error {
	uris := []string{m.Metadata}
	if len(m.Modules) == 0 {
		// A module manifest must name its own wasm component; an
		// application manifest instead names its constituent modules,
		// each checked separately below.
		uris = append(uris, m.Component)
	}
	optional := []string{m.ConfigSchema, m.Config, m.SettingsSchema, m.ShareDir, m.Icon, m.WWWDir}
	for _, u := range optional {
		if u != "" {
			uris = append(uris, u)
		}
	}
	for name, sub := range m.Modules {
		p, err := m.ResolveURI(sub)
		if err != nil {
			return herrors.Wrapf(err, "module %s manifest URI", name)
		}
		if _, err := os.Stat(p); err != nil {
			return herrors.Wrapf(herrors.ErrResourceNotFound, "module %s manifest %s unreadable", name, p)
		}
	}
	for _, uri := range uris {
		p, err := m.ResolveURI(uri)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err != nil {
			return herrors.Wrapf(herrors.ErrResourceNotFound, "manifest resource %s unreadable", p)
		}
	}
	return nil
}
