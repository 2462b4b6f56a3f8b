package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// DefaultFileCacheTTL is how long an idle reader handle is kept open before
// being reaped, matching the FileCacheTimeMs default of 5000ms.
const DefaultFileCacheTTL = 5 * time.Second

// pooledReader is a shared, cached file handle for reads of one record.
type pooledReader struct {
	mu       sync.Mutex
	file     *os.File
	lastUsed time.Time
}

// Store is a hierarchical, file-backed collection of records. Each record
// lives in its own subdirectory (name = record id, hex-dashed) containing a
// metadata.json and a data.bin of concatenated fixed-size pages.
//
// A single mutex guards the open-handle table and every metadata mutation;
// page I/O within one handle is serialized by that handle's own mutex, so
// concurrent readers of different records never contend on the store lock
// for the duration of a read.
type Store struct {
	root     string
	catalog  *catalog
	cacheTTL time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	writers map[uuid.UUID]*Writer
	readers map[uuid.UUID]*pooledReader

	count atomic.Int64
	size  atomic.Int64

	stopReaper chan struct{}
}

// Option configures a Store constructed by New.
type Option func(*Store)

// WithLogger sets the logger used for best-effort background work, such as
// reader-cache eviction.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithFileCacheTTL overrides DefaultFileCacheTTL.
func WithFileCacheTTL(d time.Duration) Option {
	return func(s *Store) { s.cacheTTL = d }
}

// New creates a Store rooted at dir, creating it if necessary, and rebuilds
// its catalog cache from the directories already on disk.
func New(dir string, options ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}

	s := &Store{
		root:       dir,
		catalog:    newCatalog(filepath.Join(dir, "catalog.sqlite")),
		cacheTTL:   DefaultFileCacheTTL,
		logger:     slog.New(slog.NewTextHandler(os.Stdout, nil)),
		writers:    make(map[uuid.UUID]*Writer),
		readers:    make(map[uuid.UUID]*pooledReader),
		stopReaper: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.rebuildCatalog(); err != nil {
		return nil, fmt.Errorf("rebuilding catalog: %w", err)
	}

	go s.reapLoop()
	return s, nil
}

// rebuildCatalog scans the record directories on disk and repopulates any
// catalog entries missing for them; the directory tree is the source of
// truth, the catalog only a lookup accelerator.
func (s *Store) rebuildCatalog() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	var seq int64
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		id, err := uuid.Parse(de.Name())
		if err != nil {
			continue // not a record directory
		}
		seq++

		have, err := s.catalog.has(id)
		if err != nil {
			return err
		}
		if have {
			continue
		}

		entry, err := s.statRecord(id)
		if err != nil {
			s.logger.Warn("skipping unreadable record during catalog rebuild", slog.String("id", id.String()), slog.Any("error", err))
			continue
		}
		if err := s.catalog.upsert(*entry); err != nil {
			return err
		}
	}
	s.catalog.resetSeqTo(seq)

	ids, err := s.catalog.list()
	if err != nil {
		return err
	}
	var total int64
	for _, id := range ids {
		if entry, err := s.statRecord(id); err == nil {
			total += entry.Size
		}
	}
	s.count.Store(int64(len(ids)))
	s.size.Store(total)
	return nil
}

func (s *Store) statRecord(id uuid.UUID) (*Entry, error) {
	dir := s.recordDir(id)

	meta, err := readMetadata(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filepath.Join(dir, dataFileName))
	var size int64
	if err == nil {
		size = info.Size()
	}

	return &Entry{
		ID:        id,
		Name:      meta.Name,
		Mode:      meta.Mode,
		Frequency: meta.Frequency,
		CreatedAt: meta.CreatedAt(),
		Size:      size,
		PageCount: meta.PageCount,
	}, nil
}

func (s *Store) recordDir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// CreateFile reserves id and returns the unique Writer for it. It fails if
// id already exists or a writer for it is already open.
func (s *Store) CreateFile(id uuid.UUID, name, mode string, frequency uint64) (*Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.writers[id]; busy {
		return nil, fmt.Errorf("%w: writer already open for %s", errkind.ErrBusy, id)
	}

	dir := s.recordDir(id)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: record %s already exists", errkind.ErrDenied, id)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating record directory: %w", err)
	}

	dataFile, err := os.OpenFile(filepath.Join(dir, dataFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}

	meta := &Metadata{
		SchemaVersion: SchemaVersion,
		Name:          name,
		Mode:          mode,
		Frequency:     frequency,
	}
	meta.createdAt = time.Now().UTC()

	metaPath := filepath.Join(dir, metadataFileName)
	if err := writeMetadata(metaPath, meta); err != nil {
		_ = dataFile.Close()
		return nil, err
	}

	w := &Writer{
		store:    s,
		id:       id,
		dataFile: dataFile,
		metaPath: metaPath,
		meta:     *meta,
	}
	s.writers[id] = w

	if err := s.catalog.upsert(Entry{ID: id, Name: name, Mode: mode, Frequency: frequency, CreatedAt: meta.createdAt}); err != nil {
		s.logger.Warn("catalog upsert failed on create", slog.Any("error", err))
	}
	s.count.Add(1)

	return w, nil
}

// OpenFile returns a Reader for id. Multiple concurrent readers are
// permitted; it fails with errkind.ErrBusy if a writer currently holds id,
// and errkind.ErrNotFound if no such record exists.
func (s *Store) OpenFile(id uuid.UUID) (*Reader, error) {
	s.mu.Lock()
	if _, busy := s.writers[id]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: writer open for %s", errkind.ErrBusy, id)
	}

	pr, cached := s.readers[id]
	if !cached {
		dir := s.recordDir(id)
		if _, err := os.Stat(dir); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: record %s", errkind.ErrNotFound, id)
		}

		f, err := os.Open(filepath.Join(dir, dataFileName))
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("opening data file: %w", err)
		}
		pr = &pooledReader{file: f}
		s.readers[id] = pr
	}
	pr.lastUsed = time.Now()
	s.mu.Unlock()

	return &Reader{store: s, id: id, pooled: pr, metaPath: filepath.Join(s.recordDir(id), metadataFileName)}, nil
}

// DeleteFile removes a record's directory. It fails with errkind.ErrBusy if
// a writer for id is currently open.
func (s *Store) DeleteFile(id uuid.UUID) error {
	s.mu.Lock()
	if _, busy := s.writers[id]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: writer open for %s", errkind.ErrBusy, id)
	}

	if pr, ok := s.readers[id]; ok {
		pr.mu.Lock()
		_ = pr.file.Close()
		pr.mu.Unlock()
		delete(s.readers, id)
	}
	s.mu.Unlock()

	entry, statErr := s.statRecord(id)

	dir := s.recordDir(id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: record %s", errkind.ErrNotFound, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	if err := s.catalog.delete(id); err != nil {
		s.logger.Warn("catalog delete failed", slog.Any("error", err))
	}
	s.count.Add(-1)
	if statErr == nil {
		s.size.Add(-entry.Size)
	}
	return nil
}

// EditRecordMetadata applies fn to id's persisted metadata and writes the
// result back, without requiring the caller to hold id's Writer. This
// covers tag mutations on a record that has already finished recording; it
// fails with errkind.ErrBusy if id's Writer is currently open, since the
// Writer's own in-memory metadata would otherwise be overwritten on Close.
func (s *Store) EditRecordMetadata(id uuid.UUID, fn func(*Metadata)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.writers[id]; busy {
		return fmt.Errorf("%w: writer open for %s", errkind.ErrBusy, id)
	}

	metaPath := filepath.Join(s.recordDir(id), metadataFileName)
	meta, err := readMetadata(metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: record %s", errkind.ErrNotFound, id)
		}
		return err
	}

	fn(meta)
	return writeMetadata(metaPath, meta)
}

// GetFiles lazily enumerates every record id in creation order.
func (s *Store) GetFiles() ([]uuid.UUID, error) {
	return s.catalog.list()
}

// TryGetEntry returns the summary for id, or ok=false if it doesn't exist.
func (s *Store) TryGetEntry(id uuid.UUID) (entry Entry, ok bool, err error) {
	e, err := s.statRecord(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return *e, true, nil
}

// Count returns the number of records currently in the store.
func (s *Store) Count() int64 { return s.count.Load() }

// Size returns the total byte size of all record data files.
func (s *Store) Size() int64 { return s.size.Load() }

// SizeHuman renders Size using human-readable units, for status logging.
func (s *Store) SizeHuman() string { return humanize.Bytes(uint64(s.size.Load())) }

// Close stops the reader-cache reaper and closes cached readers. It does
// not affect any writer still open; callers are expected to have closed
// all writers before calling Close.
func (s *Store) Close() error {
	close(s.stopReaper)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pr := range s.readers {
		pr.mu.Lock()
		_ = pr.file.Close()
		pr.mu.Unlock()
		delete(s.readers, id)
	}
	return s.catalog.close()
}

func (s *Store) reapLoop() {
	ticker := time.NewTicker(s.cacheTTL)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopReaper:
			return
		case <-ticker.C:
			s.reapIdle()
		}
	}
}

func (s *Store) reapIdle() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pr := range s.readers {
		pr.mu.Lock()
		idle := now.Sub(pr.lastUsed)
		pr.mu.Unlock()

		if idle >= s.cacheTTL {
			pr.mu.Lock()
			_ = pr.file.Close()
			pr.mu.Unlock()
			delete(s.readers, id)
		}
	}
}

// releaseWriter removes id's writer registration once it has been closed,
// and refreshes the catalog entry with the finalized page count.
func (s *Store) releaseWriter(id uuid.UUID, meta *Metadata, sizeDelta int64) {
	s.mu.Lock()
	delete(s.writers, id)
	s.mu.Unlock()

	if err := s.catalog.upsert(Entry{
		ID:        id,
		Name:      meta.Name,
		Mode:      meta.Mode,
		Frequency: meta.Frequency,
		CreatedAt: meta.CreatedAt(),
		PageCount: meta.PageCount,
	}); err != nil {
		s.logger.Warn("catalog upsert failed on writer release", slog.String("id", id.String()), slog.Any("error", err))
	}
	s.size.Add(sizeDelta)
}

func pageOffset(index uint32) int64 {
	return int64(index) * int64(PageSize)
}

// pageCountForSize returns how many whole pages fit in a file of n bytes.
func pageCountForSize(n int64) uint32 {
	return uint32(n / int64(PageSize))
}
