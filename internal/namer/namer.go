// Package namer implements Namer & StoreBinding (§4.4): turning a fetched
// URL and its detected extension into a slugified filename, then asking a
// storage adapter to reserve and persist it.
package namer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kennygrant/sanitize"

	"github.com/JakeFAU/media-inliner/internal/mediastore"
)

const maxSlugTail = 248

// Store binds naming to a storage adapter.
type Store struct {
	adapter mediastore.Adapter
}

// New builds a Store over adapter.
func New(adapter mediastore.Adapter) *Store {
	return &Store{adapter: adapter}
}

// Save names and writes data, returning the path relative to the adapter's
// storage root.
func (s *Store) Save(ctx context.Context, fetchedURL string, data []byte, extension string) (string, error) {
	filename := BuildFilename(fetchedURL, extension)

	targetDir, err := s.adapter.TargetDir(s.adapter.StoragePath())
	if err != nil {
		return "", fmt.Errorf("resolve target directory: %w", err)
	}

	absPath, err := s.adapter.UniqueFileName(ctx, filename, targetDir)
	if err != nil {
		return "", fmt.Errorf("reserve unique filename: %w", err)
	}

	return s.adapter.SaveRaw(ctx, data, absPath)
}

// BuildFilename implements §4.4 steps 1-4: strip the trailing extension
// from the URL's last path segment (keeping any query string, which is
// part of the material slugified), slugify, trim to the last 248
// characters, strip a leading or trailing dash, then append the detected
// extension.
func BuildFilename(fetchedURL, extension string) string {
	segment := segmentWithoutExtension(fetchedURL)

	slug := sanitize.Name(segment)
	slug = tailTrim(slug, maxSlugTail)
	slug = strings.Trim(slug, "-")

	return slug + "." + extension
}

// segmentWithoutExtension takes the final path segment of fetchedURL,
// strips its own trailing extension (not the query string's), and
// reappends the query string so it remains part of the slugified material.
func segmentWithoutExtension(fetchedURL string) string {
	u, err := url.Parse(fetchedURL)
	if err != nil {
		base := path.Base(fetchedURL)
		return strings.TrimSuffix(base, path.Ext(base))
	}

	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))

	if u.RawQuery != "" {
		base += "?" + u.RawQuery
	}
	return base
}

func tailTrim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
