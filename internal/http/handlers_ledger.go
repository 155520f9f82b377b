package http

import (
	"context"
	"net/http"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list(w, r, "account", s.ledger.ListAccounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	get(w, r, "account", s.ledger.GetAccount)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	create(w, r, "account", "/accounts/", s.ledger.CreateAccount, func(a core.Account) uuid.UUID { return a.ID })
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list(w, r, "category", s.ledger.ListCategories)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	get(w, r, "category", s.ledger.GetCategory)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	create(w, r, "category", "/categories/", s.ledger.CreateCategory, func(c core.Category) uuid.UUID { return c.ID })
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, "transaction", err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, "transaction", err)
		return
	}
	NewJSONResponse().JSON(nonNil(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	get(w, r, "transaction", s.ledger.GetTransaction)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	create(w, r, "transaction", "/transactions/", s.ledger.CreateTransaction, func(t core.Transaction) uuid.UUID { return t.ID })
}

func list[T any](w http.ResponseWriter, r *http.Request, entity string, fetch func(context.Context) ([]T, error)) {
	items, err := fetch(r.Context())
	if err != nil {
		writeError(w, r, entity, err)
		return
	}
	NewJSONResponse().JSON(nonNil(items)).Write(w)
}

func get[T any](w http.ResponseWriter, r *http.Request, entity string, fetch func(context.Context, uuid.UUID) (T, error)) {
	id, ok := pathID(r)
	if !ok {
		NotFoundError(entity + " not found").Write(w)
		return
	}
	item, err := fetch(r.Context(), id)
	if err != nil {
		writeError(w, r, entity, err)
		return
	}
	NewJSONResponse().JSON(item).Write(w)
}

func create[In, Out any](w http.ResponseWriter, r *http.Request, entity, prefix string, save func(context.Context, In) (Out, error), idOf func(Out) uuid.UUID) {
	var in In
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, entity, err)
		return
	}
	out, err := save(r.Context(), in)
	if err != nil {
		writeError(w, r, entity, err)
		return
	}
	NewJSONResponse().Created(prefix + idOf(out).String()).JSON(out).Write(w)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
