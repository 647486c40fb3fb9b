package datadir

import "path/filepath"

const (
	// ManifestFileName is the memoir manifest stored at the data directory root.
	ManifestFileName = "memoir.json"
	// ChaptersDirectoryName holds chapter markdown files.
	ChaptersDirectoryName = "chapters"
	// ImagesDirectoryName holds binary image assets.
	ImagesDirectoryName = "images"
	// DeletedChaptersDirectoryName holds soft-deleted chapters beneath ChaptersDirectoryName.
	DeletedChaptersDirectoryName = "deleted"
	chapterFileExtensionConstant = ".md"
)

// RequiredSubdirectories lists the directories a data directory with a manifest is expected to carry.
func RequiredSubdirectories() []string {
	return []string{ChaptersDirectoryName, ImagesDirectoryName}
}

// Layout resolves well-known paths beneath a data directory root.
type Layout struct {
	Root string
}

// NewLayout constructs a Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// ManifestPath returns the manifest location.
func (layout Layout) ManifestPath() string {
	return filepath.Join(layout.Root, ManifestFileName)
}

// ChaptersPath returns the chapters directory location.
func (layout Layout) ChaptersPath() string {
	return filepath.Join(layout.Root, ChaptersDirectoryName)
}

// DeletedChaptersPath returns the soft-deleted chapters directory location.
func (layout Layout) DeletedChaptersPath() string {
	return filepath.Join(layout.Root, ChaptersDirectoryName, DeletedChaptersDirectoryName)
}

// ImagesPath returns the images directory location.
func (layout Layout) ImagesPath() string {
	return filepath.Join(layout.Root, ImagesDirectoryName)
}
