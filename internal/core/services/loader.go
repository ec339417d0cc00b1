package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/logger"
)

// MaxFileSize is the largest file the loader accepts (10 MiB).
const MaxFileSize = 10 * 1024 * 1024

// supportedExtensions maps file extensions to document types.
var supportedExtensions = map[string]string{
	".txt":      domain.DocumentTypeText,
	".text":     domain.DocumentTypeText,
	".md":       domain.DocumentTypeMarkdown,
	".markdown": domain.DocumentTypeMarkdown,
}

// IsSupportedFile reports whether path has an extension the loader accepts.
func IsSupportedFile(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DocumentLoader validates text and Markdown files, reads them into
// documents with provenance metadata and splits them into chunks.
type DocumentLoader struct {
	splitter driven.TextSplitter
	now      func() time.Time
}

// NewDocumentLoader creates a loader that chunks with splitter.
func NewDocumentLoader(splitter driven.TextSplitter) *DocumentLoader {
	return &DocumentLoader{
		splitter: splitter,
		now:      time.Now,
	}
}

// Validate checks that path names a readable, supported file.
// All failures wrap domain.ErrValidation.
func (l *DocumentLoader) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: file not found: %s", domain.ErrValidation, path)
		}
		return fmt.Errorf("%w: stat %s: %w", domain.ErrValidation, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: not a regular file: %s", domain.ErrValidation, path)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: file too large: %s is %d bytes, limit is %d",
			domain.ErrValidation, path, info.Size(), MaxFileSize)
	}
	if !IsSupportedFile(path) {
		return fmt.Errorf("%w: unsupported file type %q: %s",
			domain.ErrValidation, filepath.Ext(path), path)
	}
	return nil
}

// Load reads the file at path into a Document. The file must be UTF-8.
// Metadata holds source, filename, type and date; Markdown files also get
// a title when they start with a level-one heading.
func (l *DocumentLoader) Load(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %w", domain.ErrValidation, path, err)
	}
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("%w: not valid UTF-8: %s", domain.ErrValidation, path)
	}

	docType := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if docType == "" {
		docType = domain.DocumentTypeText
	}

	content := string(data)
	metadata := domain.Metadata{
		domain.MetaSource:   path,
		domain.MetaFilename: filepath.Base(path),
		domain.MetaType:     docType,
		domain.MetaDate:     l.now().UTC().Format(time.RFC3339),
	}
	if docType == domain.DocumentTypeMarkdown {
		if title := markdownTitle(content); title != "" {
			metadata[domain.MetaTitle] = title
		}
	}

	return domain.Document{Content: content, Metadata: metadata}, nil
}

// Chunk splits doc and stamps each chunk with its index. Every chunk gets
// its own copy of the document metadata plus chunk_index.
func (l *DocumentLoader) Chunk(doc domain.Document) []domain.Chunk {
	parts := l.splitter.SplitText(doc.Content)
	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.NewChunk(doc, i, part)
	}
	return chunks
}

// Process validates, loads and chunks one file.
func (l *DocumentLoader) Process(path string) ([]domain.Chunk, error) {
	chunks, _, err := l.process(path)
	return chunks, err
}

// ProcessMany processes each path independently. A bad file is logged,
// recorded in the report and skipped. The error is non-nil only when ctx is
// cancelled.
func (l *DocumentLoader) ProcessMany(ctx context.Context, paths []string) ([]domain.Chunk, *domain.BatchReport, error) {
	report := &domain.BatchReport{}
	var all []domain.Chunk

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return all, report, err
		}

		chunks, stage, err := l.process(path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			report.Add(domain.ItemResult{Item: path, Stage: stage, Err: err})
			continue
		}

		report.Add(domain.ItemResult{Item: path, Chunks: len(chunks)})
		all = append(all, chunks...)
	}

	return all, report, nil
}

// process returns the chunks of path, or the stage that failed.
func (l *DocumentLoader) process(path string) ([]domain.Chunk, domain.Stage, error) {
	if err := l.Validate(path); err != nil {
		return nil, domain.StageValidate, err
	}

	doc, err := l.Load(path)
	if err != nil {
		return nil, domain.StageLoaded, err
	}
	logger.Debug("loaded %s (%d chars)", path, utf8.RuneCountInString(doc.Content))

	chunks := l.Chunk(doc)
	logger.Debug("split %s into %d chunks", path, len(chunks))
	return chunks, "", nil
}

// markdownTitle returns the text of the first level-one heading, if any.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}
