package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metcalfc/pagemark/internal/config"
	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/library"
	"github.com/metcalfc/pagemark/internal/reader"
)

var (
	cfgFile      string
	dataDir      string
	linesPerPage int
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "pagemark",
	Short: "Terminal e-book reader that keeps your place",
	Long: `Pagemark reads EPUB, Markdown and plain text books in the terminal.

Pages are built from paragraphs, so the same book paginates differently at
different font sizes. Reading positions and notes are anchored to page text
and follow the content through font changes and edits.

Examples:
  pagemark read book.epub          # Read, resuming where you left off
  pagemark info book.epub          # Show metadata and page count
  pagemark notes list book.epub    # List notes with their current pages`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.config/pagemark/config.yaml or ./config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&dataDir, "data", "", "data directory (overrides paths.data)",
	)
	rootCmd.PersistentFlags().IntVar(
		&linesPerPage, "lines", 0, "lines per page (overrides render.lines_per_page)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log at debug level",
	)

	rootCmd.AddCommand(versionCmd)
}

// session is an open library plus the configuration it was built from.
type session struct {
	cfg    *config.Config
	lib    *library.Library
	logger *slog.Logger
	closer io.Closer
}

func (s *session) Close() {
	s.lib.Close()
	if s.closer != nil {
		s.closer.Close()
	}
}

// params returns the rendering parameters after flag overrides.
func (s *session) params() domain.RenderingParameters {
	p := s.cfg.Render.Params()
	if linesPerPage > 0 {
		p.LinesPerPage = linesPerPage
	}
	return p
}

func openSession() (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.Data = dataDir
		cfg.Paths.Extracted = filepath.Join(dataDir, "saved_books")
		cfg.Paths.Edited = filepath.Join(dataDir, "edited_books")
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}

	logger, closer, err := config.SetupLogger(cfg.Logging)
	if err != nil {
		// Logging is not worth failing a command over.
		logger, closer = config.NullLogger(), nil
	}

	lib, err := library.New(library.Options{
		DataDir: cfg.Paths.Data,
		Dirs:    cfg.Paths.Dirs(),
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	return &session{cfg: cfg, lib: lib, logger: logger, closer: closer}, nil
}

// openBook opens a session and registers the book at path.
func openBook(path string) (*session, domain.BookMetadata, error) {
	s, err := openSession()
	if err != nil {
		return nil, domain.BookMetadata{}, err
	}
	m, err := s.lib.Open(path)
	if err != nil {
		s.Close()
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w\nsupported formats: %s", err, strings.Join(reader.SupportedFormats(), ", "))
		}
		return nil, domain.BookMetadata{}, err
	}
	return s, m, nil
}

// parseIndex parses a 1-based chapter or page number into a 0-based index.
func parseIndex(arg, what string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return n - 1, nil
}
