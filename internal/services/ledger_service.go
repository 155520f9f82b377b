package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"

	"github.com/google/uuid"
)

// EventPublisher delivers ledger events to other processes.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService validates and records accounts, categories and transactions.
type LedgerService struct {
	store     storage.Store
	publisher EventPublisher
	metrics   *metrics.Collector
}

// NewLedgerService wires the service. publisher and m may be nil.
func NewLedgerService(store storage.Store, publisher EventPublisher, m *metrics.Collector) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		metrics:   m,
	}
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *LedgerService) GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *LedgerService) CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		s.reject(log.EntityAccount, err)
		return core.Account{}, err
	}

	a, err := s.store.CreateAccount(ctx, in)
	if err != nil {
		s.reject(log.EntityAccount, err)
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.created(ctx, log.EntityAccount, amqp.AccountCreated, a.ID, log.NewFields().With("account_type", a.AccountType.String()))
	return a, nil
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *LedgerService) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *LedgerService) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		s.reject(log.EntityCategory, err)
		return core.Category{}, err
	}

	c, err := s.store.CreateCategory(ctx, in)
	if err != nil {
		s.reject(log.EntityCategory, err)
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.created(ctx, log.EntityCategory, amqp.CategoryCreated, c.ID, nil)
	return c, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// CreateTransaction rejects a transaction whose account or category does not
// exist. The store repeats the check inside its write so a concurrent delete
// cannot slip through.
func (s *LedgerService) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		s.reject(log.EntityTransaction, err)
		return core.Transaction{}, err
	}

	if err := s.checkReferences(ctx, in); err != nil {
		s.reject(log.EntityTransaction, err)
		return core.Transaction{}, err
	}

	t, err := s.store.CreateTransaction(ctx, in)
	if err != nil {
		s.reject(log.EntityTransaction, err)
		if core.IsValidation(err) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	fields := log.NewFields().
		With(log.FieldAccountID, t.AccountID).
		With(log.FieldAmountCents, t.Amount.Cents).
		With(log.FieldDate, t.Date.String())
	s.created(ctx, log.EntityTransaction, amqp.TransactionCreated, t.ID, fields)
	return t, nil
}

func (s *LedgerService) checkReferences(ctx context.Context, in core.NewTransaction) error {
	ok, err := s.store.AccountExists(ctx, in.AccountID)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !ok {
		return core.MissingAccount(in.AccountID)
	}

	if in.CategoryID == nil {
		return nil
	}
	ok, err = s.store.CategoryExists(ctx, *in.CategoryID)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.MissingCategory(*in.CategoryID)
	}
	return nil
}

// created records metrics, logs and publishes. Publish failures are logged
// and never fail the request: the entity is already stored.
func (s *LedgerService) created(ctx context.Context, entity string, kind amqp.EventKind, id uuid.UUID, fields log.LogFields) {
	s.metrics.LedgerCreated(entity)

	logger := log.FromContext(ctx)
	log.NewStructuredLogger(logger).LogEntityCreated(ctx, entity, id, fields)

	if s.publisher == nil {
		logger.WithComponent(log.ComponentAMQP).DebugContext(ctx, "No event publisher configured, skipping ledger event", "kind", kind)
		return
	}

	err := s.publisher.Publish(ctx, amqp.NewLedgerEvent(kind, id))
	s.metrics.EventPublished(string(kind), err)
	if err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to publish ledger event", err,
			log.ComponentAMQP, log.OpPublish, log.NewFields().WithEntity(entity, id))
	}
}

func (s *LedgerService) reject(entity string, err error) {
	reason := log.ErrorTypeInternal
	switch {
	case core.IsValidation(err):
		reason = log.ErrorTypeValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	}
	s.metrics.LedgerRejected(entity, reason)
}
