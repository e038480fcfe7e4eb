// Package mediastore defines the storage adapter contract from §6 and the
// extension-classification table used to pick an adapter for a fetched
// asset. Concrete adapters (local, gcs, memory) live in subpackages,
// grounded on the teacher's internal/storage/{local,gcs,memory} layout.
package mediastore

import (
	"context"
	"strings"
)

// Class is one of the three media classes the app's extension table routes
// a fetched asset into.
type Class string

const (
	ClassImages Class = "images"
	ClassMedia  Class = "media"
	ClassFiles  Class = "files"
)

// Adapter is the storage collaborator contract from §6.
type Adapter interface {
	StoragePath() string
	TargetDir(storagePath string) (string, error)
	UniqueFileName(ctx context.Context, name, targetDir string) (string, error)
	SaveRaw(ctx context.Context, data []byte, relativePath string) (string, error)
}

// ExtensionTable maps a lowercased, dot-prefixed extension to the class it
// belongs to, the concrete form of "consult configuration" in §6.
type ExtensionTable map[string]Class

// NewExtensionTable builds a table from per-class extension lists, as
// configured in internal/config's StorageConfig.
func NewExtensionTable(images, media, files []string) ExtensionTable {
	t := make(ExtensionTable)
	add := func(exts []string, class Class) {
		for _, e := range exts {
			t[normalizeExt(e)] = class
		}
	}
	add(images, ClassImages)
	add(media, ClassMedia)
	add(files, ClassFiles)
	return t
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Classify reports which class ext belongs to, if any.
func (t ExtensionTable) Classify(ext string) (Class, bool) {
	c, ok := t[normalizeExt(ext)]
	return c, ok
}

// Registry selects an Adapter for a class, implementing §6's "otherwise
// return nil" storage-selection fallback.
type Registry struct {
	Table  ExtensionTable
	Images Adapter
	Media  Adapter
	Files  Adapter
}

// Select returns the adapter registered for ext's class, or nil if either
// the extension is unclassified or no adapter is registered for its class.
func (r Registry) Select(ext string) Adapter {
	class, ok := r.Table.Classify(ext)
	if !ok {
		return nil
	}
	switch class {
	case ClassImages:
		return r.Images
	case ClassMedia:
		return r.Media
	case ClassFiles:
		return r.Files
	default:
		return nil
	}
}
