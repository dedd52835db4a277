// Package state persists per-book records: reading state, metadata and notes.
//
// Each concern lives in its own bbolt bucket keyed by book identifier, with a
// JSON document as the value. Every mutation is a whole-record
// read/modify/write inside a single write transaction; a failed mutation
// leaves the stored record untouched.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/metcalfc/pagemark/internal/domain"
)

const dbFileName = "pagemark.db"

// Bucket names
var (
	bucketSavedata = []byte("savedata")
	bucketMetadata = []byte("metadata")
	bucketNotes    = []byte("notes")
)

var allBuckets = [][]byte{bucketSavedata, bucketMetadata, bucketNotes}

// ReadingState is the persisted reading position of a book.
type ReadingState struct {
	Chapter        int     `json:"chapter"`
	Page           int     `json:"page"`
	FontSize       float64 `json:"font_size"`
	LinesPerPage   int     `json:"lines_per_page"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	// EditedChapters lists chapters edited since the position was saved.
	EditedChapters []int  `json:"edited_chapters"`
	Content        string `json:"content"`
}

// Position converts the record into a domain.ReadingPosition.
func (s ReadingState) Position() domain.ReadingPosition {
	return domain.ReadingPosition{
		Chapter: s.Chapter,
		Page:    s.Page,
		Params: domain.RenderingParameters{
			LinesPerPage:   s.LinesPerPage,
			FontSize:       s.FontSize,
			ViewportWidth:  s.ViewportWidth,
			ViewportHeight: s.ViewportHeight,
		},
		Snippet: s.Content,
	}
}

// SetPosition overwrites the position fields, keeping EditedChapters.
func (s *ReadingState) SetPosition(pos domain.ReadingPosition) {
	s.Chapter = pos.Chapter
	s.Page = pos.Page
	s.FontSize = pos.Params.FontSize
	s.LinesPerPage = pos.Params.LinesPerPage
	s.ViewportWidth = pos.Params.ViewportWidth
	s.ViewportHeight = pos.Params.ViewportHeight
	s.Content = pos.Snippet
}

// ChapterNotes groups the notes of one chapter.
type ChapterNotes struct {
	Chapter int         `json:"chapter"`
	Notes   []NoteEntry `json:"notes"`
}

// NoteEntry is a persisted note: Start is the anchor snippet.
type NoteEntry struct {
	Start string `json:"start"`
	Note  string `json:"note"`
}

// Store is the bbolt-backed persistence layer.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store database inside dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	dbPath := filepath.Join(dir, dbFileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrPersistence, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// === Generic helpers ===

func get[T any](s *Store, bucket []byte, bookID string, dest *T) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(bookID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, dest)
	})
	if err != nil {
		return false, fmt.Errorf("%w: read %s/%s: %v", domain.ErrPersistence, bucket, bookID, err)
	}
	return found, nil
}

// update runs fn on the decoded record (zero value when absent) and stores
// the result in the same transaction. Errors from fn are returned as-is and
// roll the transaction back.
func update[T any](s *Store, bucket []byte, bookID string, fn func(*T) error) error {
	var fnErr error
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		var rec T
		if v := b.Get([]byte(bookID)); v != nil {
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
		}
		if fnErr = fn(&rec); fnErr != nil {
			return fnErr
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(bookID), data)
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: write %s/%s: %v", domain.ErrPersistence, bucket, bookID, err)
	}
	return nil
}

// === Reading state ===

// ReadingState returns the saved reading state of a book.
func (s *Store) ReadingState(bookID string) (ReadingState, bool, error) {
	var rs ReadingState
	ok, err := get(s, bucketSavedata, bookID, &rs)
	return rs, ok, err
}

// UpdateReadingState mutates a book's reading state in one transaction.
func (s *Store) UpdateReadingState(bookID string, fn func(*ReadingState) error) error {
	return update(s, bucketSavedata, bookID, fn)
}

// === Metadata ===

// Metadata returns the metadata of a book.
func (s *Store) Metadata(bookID string) (domain.BookMetadata, bool, error) {
	var rec map[string]string
	ok, err := get(s, bucketMetadata, bookID, &rec)
	if err != nil || !ok {
		return domain.BookMetadata{ID: bookID}, ok, err
	}
	return domain.MetadataFromRecord(bookID, rec), true, nil
}

// UpdateMetadata mutates a book's metadata in one transaction.
func (s *Store) UpdateMetadata(bookID string, fn func(*domain.BookMetadata) error) error {
	return update(s, bucketMetadata, bookID, func(rec *map[string]string) error {
		m := domain.MetadataFromRecord(bookID, *rec)
		if err := fn(&m); err != nil {
			return err
		}
		*rec = m.ToRecord()
		return nil
	})
}

// Books returns the identifiers of every book with metadata.
func (s *Store) Books() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return ids, nil
}

// === Notes ===

// Notes returns the notes of a book grouped by chapter.
func (s *Store) Notes(bookID string) ([]ChapterNotes, error) {
	var notes []ChapterNotes
	_, err := get(s, bucketNotes, bookID, &notes)
	return notes, err
}

// UpdateNotes mutates a book's notes in one transaction.
func (s *Store) UpdateNotes(bookID string, fn func(*[]ChapterNotes) error) error {
	return update(s, bucketNotes, bookID, fn)
}

// === Removal ===

// DeleteReadingState removes a book's saved position.
func (s *Store) DeleteReadingState(bookID string) error {
	return s.delete(bookID, bucketSavedata)
}

// DeleteBook removes every record of a book.
func (s *Store) DeleteBook(bookID string) error {
	return s.delete(bookID, allBuckets...)
}

func (s *Store) delete(bookID string, buckets ...[]byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if err := tx.Bucket(bucket).Delete([]byte(bookID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrPersistence, bookID, err)
	}
	return nil
}
