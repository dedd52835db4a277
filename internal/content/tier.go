package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/metcalfc/pagemark/internal/reader"
)

// errMiss reports that a tier holds no entry for a key.
var errMiss = errors.New("cache miss")

// Key addresses one chapter of one book.
type Key struct {
	BookID  string
	Chapter int
}

// Entry is a chapter as held by a tier. Markup is empty when the tier only
// knows the plain text.
type Entry struct {
	Text   string
	Markup string
}

// Tier is one level of the chapter cache chain.
type Tier interface {
	Name() string
	// TryRead returns the chapter or an error; any error is treated as a miss.
	TryRead(key Key) (Entry, error)
	Write(key Key, e Entry) error
}

// BookDir derives a filesystem-safe directory name from a book identifier.
func BookDir(bookID string) string {
	base := filepath.Base(bookID)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < ' ' {
			return '_'
		}
		return r
	}, stem)
	hash := sha256.Sum256([]byte(bookID))
	return stem + "-" + hex.EncodeToString(hash[:6])
}

// MemoryCache holds resolved chapter text for the life of the process.
// Entries change only through explicit writes.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]string)}
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) TryRead(key Key) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[key]
	if !ok {
		return Entry{}, errMiss
	}
	return Entry{Text: text}, nil
}

func (c *MemoryCache) Write(key Key, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e.Text
	return nil
}

func (c *MemoryCache) remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) removeBook(bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.BookID == bookID {
			delete(c.entries, k)
		}
	}
}

// EditedTier stores user-edited chapter text as page_<n>.txt.
type EditedTier struct {
	root string
}

func NewEditedTier(root string) *EditedTier {
	return &EditedTier{root: root}
}

func (t *EditedTier) Name() string { return "edited" }

func (t *EditedTier) path(key Key) string {
	return filepath.Join(t.root, BookDir(key.BookID), fmt.Sprintf("page_%d.txt", key.Chapter))
}

func (t *EditedTier) TryRead(key Key) (Entry, error) {
	data, err := os.ReadFile(t.path(key))
	if err != nil {
		return Entry{}, err
	}
	return Entry{Text: string(data)}, nil
}

func (t *EditedTier) Write(key Key, e Entry) error {
	return writeFile(t.path(key), []byte(e.Text))
}

func (t *EditedTier) remove(key Key) error {
	err := os.Remove(t.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	err = os.Remove(t.payloadPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (t *EditedTier) payloadPath(key Key) string {
	return filepath.Join(t.root, BookDir(key.BookID), fmt.Sprintf("%d.json", key.Chapter))
}

// ExtractedTier stores chapter markup extracted from the source as page_<n>.html
// and converts it to text on read.
type ExtractedTier struct {
	root string
}

func NewExtractedTier(root string) *ExtractedTier {
	return &ExtractedTier{root: root}
}

func (t *ExtractedTier) Name() string { return "extracted" }

func (t *ExtractedTier) path(key Key) string {
	return filepath.Join(t.root, BookDir(key.BookID), fmt.Sprintf("page_%d.html", key.Chapter))
}

func (t *ExtractedTier) TryRead(key Key) (Entry, error) {
	data, err := os.ReadFile(t.path(key))
	if err != nil {
		return Entry{}, err
	}
	text, err := reader.HTMLToText(string(data))
	if err != nil {
		return Entry{}, err
	}
	return Entry{Text: text, Markup: string(data)}, nil
}

// Write stores e.Markup. Entries without markup are skipped.
func (t *ExtractedTier) Write(key Key, e Entry) error {
	if e.Markup == "" {
		return nil
	}
	return writeFile(t.path(key), []byte(e.Markup))
}

// Opener opens a source document by book identifier.
type Opener func(bookID string) (reader.Document, error)

// SourceTier reads chapters from the original document.
type SourceTier struct {
	open Opener
}

func NewSourceTier(open Opener) *SourceTier {
	return &SourceTier{open: open}
}

func (t *SourceTier) Name() string { return "source" }

func (t *SourceTier) TryRead(key Key) (Entry, error) {
	doc, err := t.open(key.BookID)
	if err != nil {
		return Entry{}, err
	}
	defer doc.Close()

	markup, err := doc.Chapter(key.Chapter)
	if err != nil {
		return Entry{}, err
	}
	text, err := reader.HTMLToText(markup)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Text: text, Markup: markup}, nil
}

func (t *SourceTier) Write(Key, Entry) error {
	return errors.New("source documents are read-only")
}

// writeFile writes through a temp file and rename so readers never see a
// partially written chapter.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
