// Package memory is a process-local ledger store. Data is lost on restart.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/google/uuid"
)

type record struct {
	core.Transaction
	seq uint64
}

type Store struct {
	mu           sync.RWMutex
	opts         storage.Options
	seq          uint64
	accounts     map[uuid.UUID]core.Account
	categories   map[uuid.UUID]core.Category
	transactions map[uuid.UUID]record
}

var _ storage.Store = (*Store)(nil)

func New(opts ...storage.Option) *Store {
	return &Store{
		opts:         storage.NewOptions(opts...),
		accounts:     map[uuid.UUID]core.Account{},
		categories:   map[uuid.UUID]core.Category{},
		transactions: map[uuid.UUID]record{},
	}
}

// NewFromFiles creates a store seeded with the categories listed in
// base/seed_categories.txt, one per line as "Name" or "Name,Income".
// A missing file yields an empty store.
func NewFromFiles(base string, opts ...storage.Option) (*Store, error) {
	s := New(opts...)
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		in := core.NewCategory{CategoryType: core.CategoryExpense}
		name, kind, found := strings.Cut(line, ",")
		in.Name = name
		if found {
			if err := in.CategoryType.UnmarshalJSON([]byte(`"` + strings.TrimSpace(kind) + `"`)); err != nil {
				return nil, err
			}
		}
		in = in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, err
		}
		if _, err := s.CreateCategory(context.Background(), in); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return nameLess(out[i].Name, out[i].ID, out[j].Name, out[j].ID)
	})
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error) {
	if err := ctx.Err(); err != nil {
		return core.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[id]
	return ok, nil
}

func (s *Store) CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error) {
	if err := ctx.Err(); err != nil {
		return core.Account{}, err
	}
	a := core.Account{
		ID:             uuid.New(),
		Name:           in.Name,
		AccountType:    in.AccountType,
		InitialBalance: in.InitialBalance,
		CreatedAt:      s.opts.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return core.ErrNotFound
	}
	for tid, r := range s.transactions {
		if r.AccountID == id {
			delete(s.transactions, tid)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return nameLess(out[i].Name, out[i].ID, out[j].Name, out[j].ID)
	})
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	if err := ctx.Err(); err != nil {
		return core.Category{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return cloneCategory(c), nil
}

func (s *Store) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.categories[id]
	return ok, nil
}

func (s *Store) CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			names[id] = c.Name
		}
	}
	return names, nil
}

func (s *Store) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	if err := ctx.Err(); err != nil {
		return core.Category{}, err
	}
	c := core.Category{
		ID:           uuid.New(),
		Name:         in.Name,
		CategoryType: in.CategoryType,
		Color:        cloneString(in.Color),
		CreatedAt:    s.opts.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return cloneCategory(c), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return core.ErrNotFound
	}
	for tid, r := range s.transactions {
		if r.CategoryID != nil && *r.CategoryID == id {
			r.CategoryID = nil
			s.transactions[tid] = r
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.collect(ctx, f.Matches)
}

func (s *Store) ListTransactionsInWindow(ctx context.Context, w core.Window) ([]core.Transaction, error) {
	return s.collect(ctx, func(t core.Transaction) bool { return w.Contains(t.Date) })
}

func (s *Store) collect(ctx context.Context, keep func(core.Transaction) bool) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]record, 0, len(s.transactions))
	for _, r := range s.transactions {
		if keep(r.Transaction) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]core.Transaction, len(matched))
	for i, r := range matched {
		out[i] = cloneTransaction(r.Transaction)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return cloneTransaction(r.Transaction), nil
}

func (s *Store) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.AccountID]; !ok {
		return core.Transaction{}, core.MissingAccount(in.AccountID)
	}
	if in.CategoryID != nil {
		if _, ok := s.categories[*in.CategoryID]; !ok {
			return core.Transaction{}, core.MissingCategory(*in.CategoryID)
		}
	}

	t := core.Transaction{
		ID:              uuid.New(),
		AccountID:       in.AccountID,
		CategoryID:      cloneID(in.CategoryID),
		Amount:          in.Amount,
		TransactionType: in.TransactionType,
		Date:            in.Date,
		Description:     cloneString(in.Description),
		CreatedAt:       s.opts.Now(),
	}
	s.seq++
	s.transactions[t.ID] = record{Transaction: t, seq: s.seq}
	return cloneTransaction(t), nil
}

func nameLess(a string, aid uuid.UUID, b string, bid uuid.UUID) bool {
	if a != b {
		return a < b
	}
	return aid.String() < bid.String()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneCategory(c core.Category) core.Category {
	c.Color = cloneString(c.Color)
	return c
}

func cloneTransaction(t core.Transaction) core.Transaction {
	t.CategoryID = cloneID(t.CategoryID)
	t.Description = cloneString(t.Description)
	return t
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
