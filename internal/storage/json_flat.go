package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/billing"
)

const (
	TariffsFileName = "config.json"
	HistoryFileName = "history.json"
)

// legacyIDNamespace seeds the ids derived for records saved without one.
var legacyIDNamespace = uuid.MustParse("6f1d3c52-7a0e-4b8e-9c3d-2f5e8a9b1c40")

// assignIDs gives every record without an id one derived from its content
// and its position among records with identical content, so the id is the
// same on every read even if it is never written back. It returns the
// number of records changed.
func assignIDs(recs []PeriodRecord) int {
	seen := make(map[string]int)
	missing := 0
	for i := range recs {
		r := &recs[i]
		content := r.Period + "|" + r.DateSaved + "|" +
			strconv.FormatFloat(r.SumWater, 'g', -1, 64) + "|" +
			strconv.FormatFloat(r.SumElectricity, 'g', -1, 64) + "|" +
			strconv.FormatFloat(r.Total, 'g', -1, 64)
		nth := seen[content]
		seen[content]++
		if r.ID != "" {
			continue
		}
		r.ID = uuid.NewSHA1(legacyIDNamespace, []byte(content+"|"+strconv.Itoa(nth))).String()
		missing++
	}
	return missing
}

// FileStorage keeps the tariff set and the history as two JSON documents in
// a directory. Every operation reads the files again; nothing is cached.
type FileStorage struct {
	mu          sync.Mutex
	dir         string
	tariffsPath string
	historyPath string
	log         *zap.Logger
}

// OpenFile returns a FileStorage rooted at dir, creating dir if needed.
func OpenFile(dir string, log *zap.Logger) (*FileStorage, error) {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStorage{
		dir:         dir,
		tariffsPath: filepath.Join(dir, TariffsFileName),
		historyPath: filepath.Join(dir, HistoryFileName),
		log:         log,
	}, nil
}

func (s *FileStorage) Close() error { return nil }

func (s *FileStorage) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

// readHistory loads history.json. A missing file is an empty history. A
// file that cannot be decoded is reported through corrupt and also treated
// as empty.
func (s *FileStorage) readHistory() (recs []PeriodRecord, corrupt bool, err error) {
	data, err := os.ReadFile(s.historyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", s.historyPath, err)
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		s.log.Warn("history file is corrupt, treating as empty",
			zap.String("path", s.historyPath), zap.Error(err))
		return nil, true, nil
	}
	return recs, false, nil
}

func (s *FileStorage) writeHistory(recs []PeriodRecord, corrupt bool) error {
	if corrupt {
		aside := s.historyPath + ".corrupt"
		if err := os.Rename(s.historyPath, aside); err != nil {
			return fmt.Errorf("move corrupt history aside: %w", err)
		}
		s.log.Warn("corrupt history moved aside", zap.String("path", aside))
	}
	if recs == nil {
		recs = []PeriodRecord{}
	}
	return writeJSONFile(s.historyPath, recs)
}

// ListPeriods returns the stored records. Records without an id (written by
// older versions) get a content-derived one, and the file is rewritten to
// keep it.
func (s *FileStorage) ListPeriods(ctx context.Context) ([]PeriodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, _, err := s.readHistory()
	if err != nil {
		s.log.Warn("history unreadable, treating as empty", zap.Error(err))
		return []PeriodRecord{}, nil
	}

	if missing := assignIDs(recs); missing > 0 {
		if err := writeJSONFile(s.historyPath, recs); err != nil {
			s.log.Warn("could not persist backfilled record ids; ids stay derived from record content",
				zap.Int("records", missing), zap.Error(err))
		} else {
			s.log.Info("backfilled record ids", zap.Int("records", missing))
		}
	}
	if recs == nil {
		recs = []PeriodRecord{}
	}
	return recs, nil
}

func (s *FileStorage) AppendPeriod(ctx context.Context, rec PeriodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, corrupt, err := s.readHistory()
	if err != nil {
		return err
	}
	rec.Seq = 0
	recs = append(recs, rec)
	return s.writeHistory(recs, corrupt)
}

func (s *FileStorage) DeletePeriods(ctx context.Context, key PeriodKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, corrupt, err := s.readHistory()
	if err != nil {
		return 0, err
	}
	if corrupt {
		return 0, nil
	}
	kept := make([]PeriodRecord, 0, len(recs))
	for _, r := range recs {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	removed := len(recs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.writeHistory(kept, false); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *FileStorage) DeletePeriodByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, corrupt, err := s.readHistory()
	if err != nil {
		return err
	}
	if corrupt {
		return ErrNotFound
	}
	assignIDs(recs)
	for i, r := range recs {
		if r.ID == id {
			kept := append(recs[:i:i], recs[i+1:]...)
			return s.writeHistory(kept, false)
		}
	}
	return ErrNotFound
}

// GetTariffs reads config.json. Keys missing from the document take their
// default value; a missing file yields nil, nil.
func (s *FileStorage) GetTariffs(ctx context.Context) (*billing.TariffSet, error) {
	data, err := os.ReadFile(s.tariffsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.tariffsPath, err)
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.tariffsPath, err)
	}
	t := billing.TariffsFromMap(m)
	return &t, nil
}

func (s *FileStorage) SaveTariffs(ctx context.Context, t billing.TariffSet) error {
	return writeJSONFile(s.tariffsPath, t)
}

// writeJSONFile replaces path atomically with the indented JSON of v.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
