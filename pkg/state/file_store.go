package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the record as a JSON document on local disk. Writes go to
// a temporary file in the same directory and are renamed into place so a
// crash never leaves a torn document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
	cfg  config
}

// fileDocument is the on-disk envelope. Records are held per key so stores
// sharing a path never overwrite each other. Key and Record are the older
// single-record layout and are only read.
type fileDocument struct {
	Records map[string]Record `json:"records"`
	Key     string            `json:"key,omitempty"`
	Record  Record            `json:"record,omitempty"`
}

func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{path: path, cfg: applyOptions(opts)}
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Key() string { return s.cfg.key }

func (s *FileStore) Replace(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("replace", "", err)
	}
	if err := s.cfg.checkRecord(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record == nil {
		record = Record{}
	}
	return wrapPersistence("replace", "", s.write(record))
}

func (s *FileStore) Read(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok, err := s.read()
	if err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	return record, ok, nil
}

func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("delete", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return wrapPersistence("delete", "", err)
	}
	if _, ok := records[s.cfg.key]; !ok {
		return nil
	}
	delete(records, s.cfg.key)
	if len(records) > 0 {
		return wrapPersistence("delete", "", s.store(records))
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapPersistence("delete", "", err)
	}
	return nil
}

func (s *FileStore) UpdateSubsection(ctx context.Context, name string, data any) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("update", name, err)
	}
	if err := s.cfg.checkSubsection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok, err := s.read()
	if err != nil {
		return wrapPersistence("update", name, err)
	}
	if !ok {
		record = Record{}
	}
	record[name] = data
	return wrapPersistence("update", name, s.write(record))
}

func (s *FileStore) read() (Record, bool, error) {
	records, err := s.load()
	if err != nil {
		return nil, false, err
	}
	record, ok := records[s.cfg.key]
	if !ok {
		return nil, false, nil
	}
	if record == nil {
		record = Record{}
	}
	return record, true, nil
}

// load returns every record in the file keyed by store key. A missing file
// is an empty map.
func (s *FileStore) load() (map[string]Record, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	records := doc.Records
	if records == nil {
		records = map[string]Record{}
	}
	if doc.Key != "" {
		if _, ok := records[doc.Key]; !ok {
			records[doc.Key] = doc.Record
		}
	}
	return records, nil
}

// write replaces this store's record and keeps every other key in the file.
func (s *FileStore) write(record Record) error {
	records, err := s.load()
	if err != nil {
		return err
	}
	records[s.cfg.key] = record
	return s.store(records)
}

func (s *FileStore) store(records map[string]Record) error {
	raw, err := json.MarshalIndent(fileDocument{Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".intake-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
