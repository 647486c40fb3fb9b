package datadir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	frontMatterDelimiterConstant       = "---"
	frontMatterOpeningConstant         = frontMatterDelimiterConstant + lineFeedConstant
	frontMatterClosingConstant         = lineFeedConstant + frontMatterDelimiterConstant
	lineFeedConstant                   = "\n"
	carriageReturnLineFeedConstant     = "\r\n"
	byteOrderMarkConstant              = "\uFEFF"
	untitledChapterTitleConstant       = "Untitled"
	manifestReadErrorTemplateConstant  = "unable to read %s: %w"
	manifestParseErrorTemplateConstant = "unable to parse %s: %w"
	frontMatterParseErrorTemplate      = "unable to parse chapter front matter: %w"
	dataDirectoryMeasureErrorTemplate  = "unable to measure data directory: %w"
)

// Manifest mirrors the memoir.json document.
type Manifest struct {
	Title    string            `json:"title"`
	Author   string            `json:"author"`
	Cover    ManifestCover     `json:"cover"`
	Chapters []ManifestChapter `json:"chapters"`
}

// ManifestCover describes the memoir cover page.
type ManifestCover struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

// ManifestChapter references one chapter file.
type ManifestChapter struct {
	ID    string `json:"id"`
	File  string `json:"file"`
	Order int    `json:"order"`
}

// FrontMatter holds the YAML header of a chapter file.
type FrontMatter struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
}

// ChapterSummary reports one manifest chapter as found on disk.
type ChapterSummary struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	WordCount int    `json:"word_count"`
	Missing   bool   `json:"missing"`
}

// Summary describes the contents of a data directory.
type Summary struct {
	Root                string           `json:"root"`
	FileCount           int              `json:"file_count"`
	TotalBytes          int64            `json:"total_bytes"`
	HasManifest         bool             `json:"has_manifest"`
	ManifestError       string           `json:"manifest_error,omitempty"`
	Title               string           `json:"title"`
	Author              string           `json:"author"`
	Chapters            []ChapterSummary `json:"chapters"`
	ImageCount          int              `json:"image_count"`
	DeletedChapterCount int              `json:"deleted_chapter_count"`
}

// Inspector reads a data directory and summarizes it without modifying anything.
type Inspector struct {
	fileSystem afero.Fs
}

// NewInspector constructs an Inspector over fileSystem, defaulting to the operating system.
func NewInspector(fileSystem afero.Fs) *Inspector {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &Inspector{fileSystem: fileSystem}
}

// Inspect summarizes the data directory rooted at root. A malformed manifest or chapter is
// reported inside the summary; only an unreadable root is an error.
func (inspector *Inspector) Inspect(root string) (Summary, error) {
	layout := NewLayout(root)
	statistics, measureError := Measure(inspector.fileSystem, layout.Root)
	if measureError != nil {
		return Summary{}, fmt.Errorf(dataDirectoryMeasureErrorTemplate, measureError)
	}

	summary := Summary{
		Root:       layout.Root,
		FileCount:  statistics.FileCount,
		TotalBytes: statistics.TotalBytes,
		Chapters:   []ChapterSummary{},
	}
	summary.ImageCount = inspector.countRegularFiles(layout.ImagesPath(), "")
	summary.DeletedChapterCount = inspector.countRegularFiles(layout.DeletedChaptersPath(), chapterFileExtensionConstant)

	manifest, manifestError := inspector.readManifest(layout)
	switch {
	case errors.Is(manifestError, fs.ErrNotExist):
		return summary, nil
	case manifestError != nil:
		summary.HasManifest = true
		summary.ManifestError = manifestError.Error()
		return summary, nil
	}

	summary.HasManifest = true
	summary.Title = manifest.Title
	summary.Author = manifest.Author
	for _, chapter := range manifest.Chapters {
		summary.Chapters = append(summary.Chapters, inspector.summarizeChapter(layout, chapter))
	}
	return summary, nil
}

// ReadManifest loads and decodes the manifest beneath root.
func (inspector *Inspector) ReadManifest(root string) (Manifest, error) {
	return inspector.readManifest(NewLayout(root))
}

func (inspector *Inspector) readManifest(layout Layout) (Manifest, error) {
	content, readError := afero.ReadFile(inspector.fileSystem, layout.ManifestPath())
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Manifest{}, readError
		}
		return Manifest{}, fmt.Errorf(manifestReadErrorTemplateConstant, ManifestFileName, readError)
	}

	var manifest Manifest
	if decodeError := json.Unmarshal(content, &manifest); decodeError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, ManifestFileName, decodeError)
	}
	return manifest, nil
}

func (inspector *Inspector) summarizeChapter(layout Layout, chapter ManifestChapter) ChapterSummary {
	chapterSummary := ChapterSummary{ID: chapter.ID, File: chapter.File, Title: untitledChapterTitleConstant}

	content, readError := afero.ReadFile(inspector.fileSystem, filepath.Join(layout.ChaptersPath(), filepath.Base(chapter.File)))
	if readError != nil {
		chapterSummary.Missing = true
		return chapterSummary
	}

	frontMatter, body, parseError := ParseChapter(content)
	if parseError != nil {
		chapterSummary.WordCount = len(strings.Fields(string(content)))
		return chapterSummary
	}
	if len(strings.TrimSpace(frontMatter.Title)) > 0 {
		chapterSummary.Title = frontMatter.Title
	}
	chapterSummary.Subtitle = frontMatter.Subtitle
	chapterSummary.WordCount = len(strings.Fields(body))
	return chapterSummary
}

func (inspector *Inspector) countRegularFiles(directory string, requiredExtension string) int {
	entries, readError := afero.ReadDir(inspector.fileSystem, directory)
	if readError != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		if len(requiredExtension) > 0 && !strings.EqualFold(filepath.Ext(entry.Name()), requiredExtension) {
			continue
		}
		count++
	}
	return count
}

// ParseChapter splits a chapter file into its YAML front matter and markdown body.
// Files without a leading delimiter have empty front matter and the whole content as body.
func ParseChapter(content []byte) (FrontMatter, string, error) {
	normalized := strings.ReplaceAll(string(bytes.TrimPrefix(content, []byte(byteOrderMarkConstant))), carriageReturnLineFeedConstant, lineFeedConstant)
	if !strings.HasPrefix(normalized, frontMatterOpeningConstant) {
		return FrontMatter{}, strings.TrimSpace(normalized), nil
	}

	remainder := normalized[len(frontMatterOpeningConstant):]
	closingIndex := strings.Index(lineFeedConstant+remainder, frontMatterClosingConstant)
	if closingIndex < 0 {
		return FrontMatter{}, strings.TrimSpace(normalized), nil
	}

	header := remainder[:closingIndex]
	body := remainder[closingIndex:]
	body = strings.TrimPrefix(strings.TrimPrefix(body, lineFeedConstant), frontMatterDelimiterConstant)

	var frontMatter FrontMatter
	if decodeError := yaml.Unmarshal([]byte(header), &frontMatter); decodeError != nil {
		return FrontMatter{}, "", fmt.Errorf(frontMatterParseErrorTemplate, decodeError)
	}
	return frontMatter, strings.TrimSpace(body), nil
}
