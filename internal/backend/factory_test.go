package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	closed    bool
	published []*amqp.LedgerEvent
}

func (c *stubClient) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	c.published = append(c.published, ev)
	return nil
}

func (c *stubClient) Close() error {
	c.closed = true
	return nil
}

func quietFactory() *DefaultFactory {
	lc := log.DefaultConfig()
	lc.Output = io.Discard
	return NewFactory(log.New(lc))
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   "memory",
		DataDirectory: "seed",
		AMQPURL:       "amqp://localhost/",
		AMQPExchange:  "fintrack",
		AMQPQueue:     "ledger_events",
	})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "seed", cfg.DataDirectory)
	assert.Equal(t, "ledger_events", cfg.AMQPQueue)
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("Groceries\nSalary,Income\n"), 0o600))

	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Publisher, "no broker configured means no publisher")
	cats, err := res.Store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)

	require.NoError(t, res.Store.Ping(context.Background()))
	require.NoError(t, res.Cleanup())
	assert.FileExists(t, path)
}

func TestCreateBackend_InvalidType(t *testing.T) {
	_, err := quietFactory().CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = quietFactory().CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}

func TestCreateBackend_Events(t *testing.T) {
	t.Run("connected broker is exposed and closed", func(t *testing.T) {
		f := quietFactory()
		client := &stubClient{}
		f.dial = func(url, exchange, queue string) (eventClient, error) {
			assert.Equal(t, "fintrack", exchange)
			return client, nil
		}

		res, err := f.CreateBackend(context.Background(), Config{
			Type:         MemoryBackend,
			AMQPURL:      "amqp://localhost/",
			AMQPExchange: "fintrack",
			AMQPQueue:    "ledger_events",
		})
		require.NoError(t, err)
		require.NotNil(t, res.Publisher)

		require.NoError(t, res.Cleanup())
		assert.True(t, client.closed)
	})

	t.Run("unreachable broker disables events", func(t *testing.T) {
		f := quietFactory()
		f.dial = func(string, string, string) (eventClient, error) {
			return nil, errors.New("connection refused")
		}

		res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/"})
		require.NoError(t, err)
		assert.Nil(t, res.Publisher)
	})
}
