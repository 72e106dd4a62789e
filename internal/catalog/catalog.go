package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VersionsHint points callers at the availability endpoint after a failed lookup.
const VersionsHint = "use GET /api/versions to list available versions"

// ErrUnknownVersion is returned by Resolve for empty or unconfigured version ids.
var ErrUnknownVersion = errors.New("unknown version")

//go:embed versions.yaml
var builtinVersions []byte

// Catalog maps version identifiers to image references. It is immutable once built.
type Catalog struct {
	images map[string]string
	order  []string // version ids, descending
}

// file is the on-disk layout of a catalog.
type file struct {
	Versions map[string]string `yaml:"versions"`
}

// New builds a catalog from a version → image mapping. The map is copied.
func New(versions map[string]string) (*Catalog, error) {
	images := make(map[string]string, len(versions))
	for id, image := range versions {
		id = strings.TrimSpace(id)
		image = strings.TrimSpace(image)
		if id == "" {
			return nil, fmt.Errorf("catalog entry with empty version id")
		}
		if image == "" {
			return nil, fmt.Errorf("catalog entry %q has no image", id)
		}
		if _, dup := images[id]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", id)
		}
		images[id] = image
	}

	order := make([]string, 0, len(images))
	for id := range images {
		order = append(order, id)
	}
	SortDescending(order)

	return &Catalog{images: images, order: order}, nil
}

// Parse reads a catalog from YAML of the form `versions: {"3.2.4": "ruby:3.2.4-alpine"}`.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Versions) == 0 {
		return nil, fmt.Errorf("catalog has no versions")
	}
	return New(f.Versions)
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in Ruby catalog.
func Default() *Catalog {
	c, err := Parse(builtinVersions)
	if err != nil {
		panic(fmt.Sprintf("builtin catalog: %v", err))
	}
	return c
}

// Resolve returns the image reference configured for versionID.
func (c *Catalog) Resolve(versionID string) (string, error) {
	if versionID == "" {
		return "", fmt.Errorf("version is required: %w", ErrUnknownVersion)
	}
	image, ok := c.images[versionID]
	if !ok {
		return "", fmt.Errorf("version %q is not configured: %w", versionID, ErrUnknownVersion)
	}
	return image, nil
}

// Versions returns every configured version id, highest first.
func (c *Catalog) Versions() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Image returns the image for a configured version and whether it exists.
func (c *Catalog) Image(versionID string) (string, bool) {
	image, ok := c.images[versionID]
	return image, ok
}

// Len is the number of configured versions.
func (c *Catalog) Len() int {
	return len(c.images)
}
