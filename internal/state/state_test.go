package state

import (
	"errors"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/metcalfc/pagemark/internal/domain"
)

const testBook = "/books/moby-dick.epub"

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReadingState(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	// Unknown book has no state
	_, ok, err := store.ReadingState(testBook)
	if err != nil {
		t.Fatalf("ReadingState failed: %v", err)
	}
	if ok {
		t.Error("Expected no state for unknown book")
	}

	pos := domain.ReadingPosition{
		Chapter: 2,
		Page:    1,
		Params:  domain.RenderingParameters{LinesPerPage: 8, FontSize: 12, ViewportWidth: 800, ViewportHeight: 600},
		Snippet: "the old man said",
	}
	err = store.UpdateReadingState(testBook, func(rs *ReadingState) error {
		rs.SetPosition(pos)
		rs.EditedChapters = []int{2}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateReadingState failed: %v", err)
	}

	rs, ok, err := store.ReadingState(testBook)
	if err != nil || !ok {
		t.Fatalf("ReadingState = %v, %v", ok, err)
	}
	if rs.Position() != pos {
		t.Errorf("Position() = %+v, want %+v", rs.Position(), pos)
	}
	if len(rs.EditedChapters) != 1 || rs.EditedChapters[0] != 2 {
		t.Errorf("EditedChapters = %v", rs.EditedChapters)
	}

	if err := store.DeleteReadingState(testBook); err != nil {
		t.Fatalf("DeleteReadingState failed: %v", err)
	}
	if _, ok, _ := store.ReadingState(testBook); ok {
		t.Error("Expected no state after delete")
	}
}

func TestFailedUpdateLeavesRecord(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	store.UpdateReadingState(testBook, func(rs *ReadingState) error {
		rs.Page = 3
		return nil
	})

	boom := errors.New("boom")
	err := store.UpdateReadingState(testBook, func(rs *ReadingState) error {
		rs.Page = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	rs, _, _ := store.ReadingState(testBook)
	if rs.Page != 3 {
		t.Errorf("Page = %d, want 3 (record must be unmodified)", rs.Page)
	}
}

func TestCorruptRecord(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSavedata).Put([]byte(testBook), []byte("{not json"))
	})

	if _, _, err := store.ReadingState(testBook); !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("ReadingState error = %v, want ErrPersistence", err)
	}

	err := store.UpdateReadingState(testBook, func(rs *ReadingState) error { return nil })
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("UpdateReadingState error = %v, want ErrPersistence", err)
	}
}

func TestMetadata(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	err := store.UpdateMetadata(testBook, func(m *domain.BookMetadata) error {
		m.Title = "Moby Dick"
		m.Chapters = 3
		m.MarkEdited(1)
		total := 12
		m.TotalPages = &total
		m.PagesLines = 8
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}

	m, ok, err := store.Metadata(testBook)
	if err != nil || !ok {
		t.Fatalf("Metadata = %v, %v", ok, err)
	}
	if m.Title != "Moby Dick" || m.Chapters != 3 || m.Favorite {
		t.Errorf("unexpected metadata %+v", m)
	}
	if m.TotalPages == nil || *m.TotalPages != 12 || m.PagesLines != 8 {
		t.Errorf("TotalPages = %v, PagesLines = %d", m.TotalPages, m.PagesLines)
	}
	if !m.IsEdited(1) {
		t.Error("Expected chapter 1 to be edited")
	}

	ids, err := store.Books()
	if err != nil {
		t.Fatalf("Books failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != testBook {
		t.Errorf("Books() = %v", ids)
	}
}

func TestMetadataStringFallbacks(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(testBook),
			[]byte(`{"title":"T","chapters":"many","total_pages":"-4","favorite":"yes"}`))
	})

	m, ok, err := store.Metadata(testBook)
	if err != nil || !ok {
		t.Fatalf("Metadata = %v, %v", ok, err)
	}
	if m.Chapters != 0 || m.TotalPages != nil || m.Favorite {
		t.Errorf("invalid values should fall back to defaults, got %+v", m)
	}
}

func TestNotesAndDeleteBook(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	err := store.UpdateNotes(testBook, func(notes *[]ChapterNotes) error {
		*notes = append(*notes, ChapterNotes{Chapter: 1, Notes: []NoteEntry{{Start: "Call me", Note: "opening"}}})
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateNotes failed: %v", err)
	}
	store.UpdateMetadata(testBook, func(m *domain.BookMetadata) error { return nil })

	notes, err := store.Notes(testBook)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Notes[0].Start != "Call me" {
		t.Errorf("Notes() = %+v", notes)
	}

	if err := store.DeleteBook(testBook); err != nil {
		t.Fatalf("DeleteBook failed: %v", err)
	}
	notes, _ = store.Notes(testBook)
	if len(notes) != 0 {
		t.Errorf("Expected no notes after DeleteBook, got %+v", notes)
	}
	if _, ok, _ := store.Metadata(testBook); ok {
		t.Error("Expected no metadata after DeleteBook")
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()

	store1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store1.UpdateReadingState(testBook, func(rs *ReadingState) error {
		rs.Chapter = 4
		rs.Page = 5678
		return nil
	})
	store1.Close()

	store2 := openTestStore(t, dir)
	rs, ok, err := store2.ReadingState(testBook)
	if err != nil || !ok {
		t.Fatalf("ReadingState = %v, %v", ok, err)
	}
	if rs.Page != 5678 || rs.Chapter != 4 {
		t.Errorf("Expected chapter 4 page 5678 from persisted state, got %d/%d", rs.Chapter, rs.Page)
	}
}
