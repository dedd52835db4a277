// Package content resolves the canonical plain text of a chapter through a
// chain of cache tiers: memory, user edits, extracted markup and finally the
// source document.
package content

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/reader"
)

// Dirs are the cache roots. Each book gets a subdirectory named by BookDir.
type Dirs struct {
	Extracted string
	Edited    string
}

type link struct {
	tier      Tier
	writeBack bool
}

// Resolver returns chapter text, first hit wins. A hit is written back to
// every faster write-back tier. The edited tier is only written by Edit.
type Resolver struct {
	chain  []link
	memory *MemoryCache
	edited *EditedTier
	dirs   Dirs
	open   Opener
	logger *slog.Logger
}

// NewResolver creates a resolver over dirs. A nil open uses reader.Open.
func NewResolver(dirs Dirs, open Opener, logger *slog.Logger) *Resolver {
	if open == nil {
		open = reader.Open
	}
	if logger == nil {
		logger = slog.Default()
	}
	memory := NewMemoryCache()
	edited := NewEditedTier(dirs.Edited)
	return &Resolver{
		chain: []link{
			{tier: memory, writeBack: true},
			{tier: edited},
			{tier: NewExtractedTier(dirs.Extracted), writeBack: true},
			{tier: NewSourceTier(open)},
		},
		memory: memory,
		edited: edited,
		dirs:   dirs,
		open:   open,
		logger: logger,
	}
}

// Resolve returns the plain text of a chapter. It fails with
// domain.ErrContentUnavailable when no tier can produce it.
func (r *Resolver) Resolve(bookID string, chapter int) (string, error) {
	key := Key{BookID: bookID, Chapter: chapter}

	var lastErr error
	for i, l := range r.chain {
		e, err := l.tier.TryRead(key)
		if err != nil {
			lastErr = err
			continue
		}
		if i > 0 {
			r.logger.Debug("chapter resolved", "book", bookID, "chapter", chapter, "tier", l.tier.Name())
		}
		r.writeBack(key, e, i)
		return e.Text, nil
	}

	return "", fmt.Errorf("%w: book %s chapter %d: %v", domain.ErrContentUnavailable, bookID, chapter, lastErr)
}

func (r *Resolver) writeBack(key Key, e Entry, hit int) {
	for _, l := range r.chain[:hit] {
		if !l.writeBack {
			continue
		}
		if err := l.tier.Write(key, e); err != nil {
			r.logger.Warn("cache write-back failed",
				"book", key.BookID, "chapter", key.Chapter, "tier", l.tier.Name(), "error", err)
		}
	}
}

// EditPayload is the raw record of a user edit, stored next to the edited text.
type EditPayload struct {
	Chapter int    `json:"chapter"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
}

// Edit stores user-edited chapter text and the raw edit payload. Later
// resolves return text verbatim.
func (r *Resolver) Edit(bookID string, chapter int, text string, payload EditPayload) error {
	key := Key{BookID: bookID, Chapter: chapter}
	if err := r.edited.Write(key, Entry{Text: text}); err != nil {
		return fmt.Errorf("write edited chapter: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(r.edited.payloadPath(key), data); err != nil {
		return fmt.Errorf("write edit payload: %w", err)
	}
	return r.memory.Write(key, Entry{Text: text})
}

// Revert drops a chapter's edited text so it resolves from the source again.
func (r *Resolver) Revert(bookID string, chapter int) error {
	key := Key{BookID: bookID, Chapter: chapter}
	r.memory.remove(key)
	if err := r.edited.remove(key); err != nil {
		return fmt.Errorf("remove edited chapter: %w", err)
	}
	return nil
}

// Forget removes every cached chapter of a book.
func (r *Resolver) Forget(bookID string) error {
	r.memory.removeBook(bookID)
	dir := BookDir(bookID)
	for _, root := range []string{r.dirs.Edited, r.dirs.Extracted} {
		if err := os.RemoveAll(filepath.Join(root, dir)); err != nil {
			return err
		}
	}
	return nil
}

// Document opens the source document of a book.
func (r *Resolver) Document(bookID string) (reader.Document, error) {
	doc, err := r.open(bookID)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrContentUnavailable, bookID, err)
	}
	return doc, nil
}
