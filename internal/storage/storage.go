package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned by backends when a folder or object does not exist.
var ErrNotFound = errors.New("storage: not found")

// Item is one object stored directly under a remote folder.
type Item struct {
	Name string `json:"name"`
	// Path is folder + "/" + name.
	Path string `json:"path"`
	// ID is the backend handle: a Drive file id or an object key.
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

// Backend captures the remote operations a Store needs. Folders are always
// top-level; nothing below them is visited.
type Backend interface {
	// ListTopLevel returns the names of every entry at the top of the store.
	ListTopLevel(ctx context.Context) ([]string, error)
	// Stat returns ErrNotFound when folder does not exist.
	Stat(ctx context.Context, folder string) error
	// EnsureFolder creates folder when the store needs explicit creation.
	EnsureFolder(ctx context.Context, folder string) error
	// Put writes name under folder, replacing any existing object of that name.
	Put(ctx context.Context, folder, name string, data []byte) (Item, error)
	Get(ctx context.Context, folder, name string) ([]byte, error)
	// List returns the direct children of folder.
	List(ctx context.Context, folder string) ([]Item, error)
	// ShareLink returns a publicly resolvable URL for item.
	ShareLink(ctx context.Context, item Item) (string, error)
}

var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// IsImage reports whether name carries an image extension (case-insensitive).
func IsImage(name string) bool {
	_, ext := SplitName(name)
	return imageExtensions[strings.ToLower(ext)]
}

// SplitName splits name at its last dot. ext has no leading dot and is empty
// when name has none.
func SplitName(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

func objectKey(folder, name string) string {
	return path.Join(folder, name)
}
