package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// createdAtLayout is fixed width so text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

const (
	accountColumns     = "id, name, account_type, initial_balance_cents, is_archived, created_at"
	categoryColumns    = "id, name, category_type, color, is_archived, created_at"
	transactionColumns = "id, account_id, category_id, amount_cents, transaction_type, occurred_on, description, created_at"

	// rowid breaks ties between rows created within the same clock tick.
	transactionOrder = " ORDER BY occurred_on DESC, created_at DESC, rowid DESC"
)

type SQLiteRepository struct {
	db   *sql.DB
	opts Options
}

var _ Store = (*SQLiteRepository)(nil)

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, opts: NewOptions(opts...)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (core.Account, error) {
	var (
		a         core.Account
		id        string
		createdAt string
	)
	if err := s.Scan(&id, &a.Name, &a.AccountType, &a.InitialBalance.Cents, &a.IsArchived, &createdAt); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return core.Account{}, fmt.Errorf("parse account id %q: %w", id, err)
	}
	if a.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return core.Account{}, fmt.Errorf("parse account created_at: %w", err)
	}
	return a, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c         core.Category
		id        string
		color     sql.NullString
		createdAt string
	)
	if err := s.Scan(&id, &c.Name, &c.CategoryType, &color, &c.IsArchived, &createdAt); err != nil {
		return core.Category{}, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return core.Category{}, fmt.Errorf("parse category id %q: %w", id, err)
	}
	if c.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return core.Category{}, fmt.Errorf("parse category created_at: %w", err)
	}
	c.Color = fromNullString(color)
	return c, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t           core.Transaction
		id, account string
		category    sql.NullString
		occurredOn  string
		description sql.NullString
		createdAt   string
	)
	if err := s.Scan(&id, &account, &category, &t.Amount.Cents, &t.TransactionType, &occurredOn, &description, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction id %q: %w", id, err)
	}
	if t.AccountID, err = uuid.Parse(account); err != nil {
		return core.Transaction{}, fmt.Errorf("parse account id %q: %w", account, err)
	}
	if category.Valid {
		cid, err := uuid.Parse(category.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse category id %q: %w", category.String, err)
		}
		t.CategoryID = &cid
	}
	if t.Date, err = core.ParseDate(occurredOn); err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_on %q: %w", occurredOn, err)
	}
	if t.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction created_at: %w", err)
	}
	t.Description = fromNullString(description)
	return t, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) AccountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return exists(ctx, r.db, "accounts", id)
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error) {
	a := core.Account{
		ID:             uuid.New(),
		Name:           in.Name,
		AccountType:    in.AccountType,
		InitialBalance: in.InitialBalance,
		CreatedAt:      r.opts.Now(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		a.ID.String(), a.Name, int(a.AccountType), a.InitialBalance.Cents, a.IsArchived, a.CreatedAt.Format(createdAtLayout),
	)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	slog.DebugContext(ctx, "Account saved to SQLite", "id", a.ID, "name", a.Name)
	return a, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE account_id = ?", id.String()); err != nil {
			return fmt.Errorf("delete account transactions: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id.String())
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return requireAffected(res)
	})
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id.String())
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return exists(ctx, r.db, "categories", id)
}

func (r *SQLiteRepository) CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	query := "SELECT id, name FROM categories WHERE id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan category name: %w", err)
		}
		cid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse category id %q: %w", id, err)
		}
		names[cid] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category names: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	c := core.Category{
		ID:           uuid.New(),
		Name:         in.Name,
		CategoryType: in.CategoryType,
		Color:        in.Color,
		CreatedAt:    r.opts.Now(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories ("+categoryColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.ID.String(), c.Name, int(c.CategoryType), toNullString(c.Color), c.IsArchived, c.CreatedAt.Format(createdAtLayout),
	)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	slog.DebugContext(ctx, "Category saved to SQLite", "id", c.ID, "name", c.Name)
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE transactions SET category_id = NULL WHERE category_id = ?", id.String()); err != nil {
			return fmt.Errorf("detach category transactions: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id.String())
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return requireAffected(res)
	})
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID.String())
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID.String())
	}
	if f.From != nil {
		if afterStoredDates(*f.From) {
			return []core.Transaction{}, nil
		}
		where = append(where, "occurred_on >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil && !afterStoredDates(*f.To) {
		where = append(where, "occurred_on <= ?")
		args = append(args, f.To.String())
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return r.queryTransactions(ctx, query+transactionOrder, args...)
}

func (r *SQLiteRepository) ListTransactionsInWindow(ctx context.Context, w core.Window) ([]core.Transaction, error) {
	if afterStoredDates(w.Start) {
		return []core.Transaction{}, nil
	}
	query := "SELECT " + transactionColumns + " FROM transactions WHERE occurred_on >= ?"
	args := []any{w.Start.String()}
	if !afterStoredDates(w.End) {
		query += " AND occurred_on < ?"
		args = append(args, w.End.String())
	}
	return r.queryTransactions(ctx, query+transactionOrder, args...)
}

// afterStoredDates reports whether d lies past every storable occurred_on.
// Stored dates have four-digit years and compare as text, which a five-digit
// year would break.
func afterStoredDates(d core.Date) bool {
	return d.Year() > core.MaxYear
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id.String())
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	t := core.Transaction{
		ID:              uuid.New(),
		AccountID:       in.AccountID,
		CategoryID:      in.CategoryID,
		Amount:          in.Amount,
		TransactionType: in.TransactionType,
		Date:            in.Date,
		Description:     in.Description,
		CreatedAt:       r.opts.Now(),
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "accounts", t.AccountID)
		if err != nil {
			return err
		}
		if !ok {
			return core.MissingAccount(t.AccountID)
		}

		var category sql.NullString
		if t.CategoryID != nil {
			ok, err := exists(ctx, tx, "categories", *t.CategoryID)
			if err != nil {
				return err
			}
			if !ok {
				return core.MissingCategory(*t.CategoryID)
			}
			category = sql.NullString{String: t.CategoryID.String(), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			t.ID.String(), t.AccountID.String(), category, t.Amount.Cents, int(t.TransactionType),
			t.Date.String(), toNullString(t.Description), t.CreatedAt.Format(createdAtLayout),
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// exists only ever receives a table name from this file.
func exists(ctx context.Context, q queryer, table string, id uuid.UUID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return true, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
