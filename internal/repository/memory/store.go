// Package memory is a process-local repository used when no database DSN is
// configured, and as the test double for services built on the repository.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
)

type state struct {
	nextID    uint64
	positions map[uint64]models.LedgerPosition
	watchlist map[uint64]models.WatchlistStock
	settings  map[string]models.SystemSetting
}

type Store struct {
	mu   sync.RWMutex
	st   *state
	txMu *sync.Mutex
	now  func() time.Time
	inTx bool

	commits   atomic.Int64
	commitErr atomic.Pointer[error]
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		st: &state{
			positions: map[uint64]models.LedgerPosition{},
			watchlist: map[uint64]models.WatchlistStock{},
			settings:  map[string]models.SystemSetting{},
		},
		txMu: &sync.Mutex{},
		now:  now,
	}
}

// Commits counts transactions that committed.
func (s *Store) Commits() int64 {
	return s.commits.Load()
}

// FailCommits makes every following commit fail with err; nil clears it.
func (s *Store) FailCommits(err error) {
	if err == nil {
		s.commitErr.Store(nil)
		return
	}
	s.commitErr.Store(&err)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.LedgerRepository) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	child := &Store{st: s.st.clone(), txMu: s.txMu, now: s.now, inTx: true}
	s.mu.RUnlock()

	if err := fn(child); err != nil {
		return err
	}
	if errp := s.commitErr.Load(); errp != nil {
		return *errp
	}

	s.mu.Lock()
	s.st.positions = child.st.positions
	if child.st.nextID > s.st.nextID {
		s.st.nextID = child.st.nextID
	}
	s.mu.Unlock()
	s.commits.Add(1)
	return nil
}

func (s *Store) GetPosition(ctx context.Context, scope repository.Scope, code string) (*models.LedgerPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.st.positions {
		if inScope(p, scope) && p.StockCode == code {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SavePosition(ctx context.Context, item *models.LedgerPosition) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if item.ID == 0 {
		for _, p := range s.st.positions {
			if p.UserID == item.UserID && p.ChatID == item.ChatID && p.StockCode == item.StockCode {
				return errors.Newf("duplicate key uk_ledger_scope_code (%s, %s, %s)", item.UserID, item.ChatID, item.StockCode)
			}
		}
		s.st.nextID++
		item.ID = s.st.nextID
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.st.positions[item.ID] = *item
	return nil
}

func (s *Store) DeletePositions(ctx context.Context, scope repository.Scope, codes []string) (int64, error) {
	set := map[string]struct{}{}
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	if len(set) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.st.positions {
		if _, ok := set[p.StockCode]; ok && inScope(p, scope) {
			delete(s.st.positions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.LedgerPosition, error) {
	s.mu.RLock()
	items := make([]models.LedgerPosition, 0)
	for _, p := range s.st.positions {
		if inScope(p, params.Scope) {
			items = append(items, p)
		}
	}
	s.mu.RUnlock()

	asc := params.Asc != nil && *params.Asc
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if asc {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	return page(items, params.Limit, params.Offset), nil
}

func (s *Store) ListWatchlist(ctx context.Context, userID uint64) ([]models.WatchlistStock, error) {
	s.mu.RLock()
	items := make([]models.WatchlistStock, 0, len(s.st.watchlist))
	for _, w := range s.st.watchlist {
		if w.UserID == userID {
			items = append(items, w)
		}
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

func (s *Store) GetWatchlistByCode(ctx context.Context, userID uint64, code string) (*models.WatchlistStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.st.watchlist {
		if w.UserID == userID && w.StockCode == code {
			out := w
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertWatchlist(ctx context.Context, item *models.WatchlistStock) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.st.watchlist {
		if w.UserID == item.UserID && w.StockCode == item.StockCode {
			return errors.Newf("duplicate key uk_watchlist_user_code (%d, %s)", item.UserID, item.StockCode)
		}
	}
	s.st.nextID++
	item.ID = s.st.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.st.watchlist[item.ID] = *item
	return nil
}

func (s *Store) DeleteWatchlist(ctx context.Context, userID uint64, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.watchlist[id]
	if !ok || w.UserID != userID {
		return false, nil
	}
	delete(s.st.watchlist, id)
	return true, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if item == nil {
		return nil
	}
	key := strings.TrimSpace(item.Key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.st.settings[key]; ok {
		existing.Value = append(existing.Value[:0:0], item.Value...)
		existing.Description = item.Description
		existing.UpdatedAt = now
		s.st.settings[key] = existing
		*item = existing
		return nil
	}
	s.st.nextID++
	item.ID = s.st.nextID
	item.Key = key
	item.CreatedAt = now
	item.UpdatedAt = now
	s.st.settings[key] = *item
	return nil
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.st.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	prefix := ""
	if params.Prefix != nil {
		prefix = strings.TrimSpace(*params.Prefix)
	}
	s.mu.RLock()
	items := make([]models.SystemSetting, 0, len(s.st.settings))
	for k, v := range s.st.settings {
		if strings.HasPrefix(k, prefix) {
			items = append(items, v)
		}
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return page(items, params.Limit, params.Offset), nil
}

func (st *state) clone() *state {
	out := &state{
		nextID:    st.nextID,
		positions: make(map[uint64]models.LedgerPosition, len(st.positions)),
		watchlist: st.watchlist,
		settings:  st.settings,
	}
	for id, p := range st.positions {
		out.positions[id] = p
	}
	return out
}

func inScope(p models.LedgerPosition, scope repository.Scope) bool {
	return p.UserID == scope.UserID && p.ChatID == scope.ChatID
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
