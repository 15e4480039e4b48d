package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"driverpay.service/internal/core/model"
)

// document is the whole persisted state. Every mutation rewrites the full
// file; the only durability guarantee is "last full write wins".
type document struct {
	Drivers map[int64]*model.DriverState `json:"drivers"`
	Entries []*model.Entry               `json:"entries"`
}

// FileStore keeps all state in memory and mirrors it to a single JSON file.
// An empty path makes the store purely volatile, which is what tests use.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  document
}

// NewFileStore loads the document from path if it exists. GetDriver returns
// (nil, nil) for a driver that has no record yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc:  document{Drivers: map[int64]*model.DriverState{}},
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("decoding state file: %w", err)
	}
	if s.doc.Drivers == nil {
		s.doc.Drivers = map[int64]*model.DriverState{}
	}
	return s, nil
}

// persist writes the fully materialized document. Callers hold s.mu.
func (s *FileStore) persist() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

func (s *FileStore) GetDriver(_ context.Context, driverID int64) (*model.DriverState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doc.Drivers[driverID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *FileStore) PutDriver(_ context.Context, d *model.DriverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.doc.Drivers[d.DriverID] = &cp
	return s.persist()
}

func (s *FileStore) ListDrivers(_ context.Context) ([]*model.DriverState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.DriverState, 0, len(s.doc.Drivers))
	for _, d := range s.doc.Drivers {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (s *FileStore) CreateEntry(_ context.Context, e *model.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID int64
	for _, x := range s.doc.Entries {
		if x.ID > maxID {
			maxID = x.ID
		}
	}
	cp := *e
	cp.ID = maxID + 1
	s.doc.Entries = append(s.doc.Entries, &cp)
	if err := s.persist(); err != nil {
		return 0, err
	}
	e.ID = cp.ID
	return cp.ID, nil
}

func (s *FileStore) GetEntry(_ context.Context, id int64) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.doc.Entries {
		if x.ID == id {
			cp := *x
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *FileStore) UpdateEntry(_ context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.doc.Entries {
		if x.ID == e.ID {
			cp := *e
			s.doc.Entries[i] = &cp
			return s.persist()
		}
	}
	return fmt.Errorf("entry %d not found", e.ID)
}

func (s *FileStore) EntriesInRange(_ context.Context, driverID int64, from, to time.Time) ([]*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Entry
	for _, x := range s.doc.Entries {
		if x.DriverID != driverID || !x.Processed || x.CommittedAt == nil {
			continue
		}
		at := *x.CommittedAt
		if at.Before(from) || at.After(to) {
			continue
		}
		cp := *x
		out = append(out, &cp)
	}
	return out, nil
}

func (s *FileStore) ListDriverEntries(_ context.Context, driverID int64) ([]*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Entry
	for _, x := range s.doc.Entries {
		if x.DriverID == driverID {
			cp := *x
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FileStore) DriverTotals(_ context.Context, driverID int64) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	earned, cash := decimal.Zero, decimal.Zero
	for _, x := range s.doc.Entries {
		if x.DriverID == driverID && x.Processed {
			earned = earned.Add(x.Earned)
			cash = cash.Add(x.Cash)
		}
	}
	return earned, cash, nil
}
