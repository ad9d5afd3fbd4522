package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstore/m/internal/config"
	"medstore/m/internal/database"
	"medstore/m/internal/migrations"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewMemory() },
		"sqlite": func(t *testing.T) Backend {
			db, err := database.Connect(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			require.NoError(t, migrations.Run(db))
			return NewSQLite(db)
		},
		"bolt": func(t *testing.T) Backend {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "kv.bolt"))
			require.NoError(t, err)
			return b
		},
		"redis": func(t *testing.T) Backend {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			return NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, newBackend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("missing key", func(t *testing.T) {
				s := New(newBackend(t))
				defer s.Close()

				var got []record
				err := s.Get(ctx, "absent", &got)
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("set then get", func(t *testing.T) {
				s := New(newBackend(t))
				defer s.Close()

				want := []record{{Name: "a", Count: 1}, {Name: "b", Count: 2}}
				require.NoError(t, s.Set(ctx, "items", want))

				var got []record
				require.NoError(t, s.Get(ctx, "items", &got))
				assert.Equal(t, want, got)
			})

			t.Run("malformed content", func(t *testing.T) {
				b := newBackend(t)
				s := New(b)
				defer s.Close()

				require.NoError(t, b.WriteBatch(ctx, map[string][]byte{"items": []byte("{not json")}))

				var got []record
				err := s.Get(ctx, "items", &got)
				var decErr *DecodeError
				require.True(t, errors.As(err, &decErr))
				assert.Equal(t, "items", decErr.Key)

				loaded, err := Load(ctx, s, "items", []record{})
				require.NoError(t, err)
				assert.Empty(t, loaded)
			})

			t.Run("update writes all keys", func(t *testing.T) {
				s := New(newBackend(t))
				defer s.Close()

				err := s.Update(ctx, func(tx *Tx) error {
					if err := tx.Set(ctx, "one", record{Name: "one"}); err != nil {
						return err
					}
					var seen record
					require.NoError(t, tx.Get(ctx, "one", &seen))
					assert.Equal(t, "one", seen.Name)
					return tx.Set(ctx, "two", record{Name: "two"})
				})
				require.NoError(t, err)

				var one, two record
				require.NoError(t, s.Get(ctx, "one", &one))
				require.NoError(t, s.Get(ctx, "two", &two))
				assert.Equal(t, "one", one.Name)
				assert.Equal(t, "two", two.Name)
			})

			t.Run("update rolls back on error", func(t *testing.T) {
				s := New(newBackend(t))
				defer s.Close()

				require.NoError(t, s.Set(ctx, "one", record{Name: "before"}))
				boom := errors.New("boom")
				err := s.Update(ctx, func(tx *Tx) error {
					require.NoError(t, tx.Set(ctx, "one", record{Name: "after"}))
					require.NoError(t, tx.Set(ctx, "two", record{Name: "after"}))
					return boom
				})
				assert.ErrorIs(t, err, boom)

				var one record
				require.NoError(t, s.Get(ctx, "one", &one))
				assert.Equal(t, "before", one.Name)
				assert.ErrorIs(t, s.Get(ctx, "two", &one), ErrNotFound)
			})
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key yields fallback", func(t *testing.T) {
		s := New(NewMemory())
		got, err := Load(ctx, s, "items", []record{{Name: "default"}})
		require.NoError(t, err)
		assert.Equal(t, []record{{Name: "default"}}, got)
	})

	t.Run("stored null yields fallback", func(t *testing.T) {
		mem := NewMemory()
		require.NoError(t, mem.WriteBatch(ctx, map[string][]byte{"items": []byte("null")}))
		got, err := Load(ctx, New(mem), "items", []record{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("wrong shape yields fallback", func(t *testing.T) {
		mem := NewMemory()
		require.NoError(t, mem.WriteBatch(ctx, map[string][]byte{"items": []byte(`{"name":"x"}`)}))
		got, err := Load(ctx, New(mem), "items", []record{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("backend failure is returned", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(cctx, New(NewMemory()), "items", []record{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, config.Config{StoreDriver: config.DriverSQLite, DatabaseDSN: filepath.Join(t.TempDir(), "open.db")})
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", 1))
	})

	t.Run("bolt", func(t *testing.T) {
		s, err := Open(ctx, config.Config{StoreDriver: config.DriverBolt, BoltPath: filepath.Join(t.TempDir(), "open.bolt")})
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", 1))
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		s, err := Open(ctx, config.Config{StoreDriver: config.DriverRedis, RedisAddr: mr.Addr(), RedisPrefix: "medstore:"})
		require.NoError(t, err)
		defer s.Close()
		require.NoError(t, s.Set(ctx, "k", 1))
		assert.True(t, mr.Exists("medstore:k"))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, config.Config{StoreDriver: "etcd"})
		assert.Error(t, err)
	})
}
