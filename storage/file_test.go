package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileRecord(t *testing.T) *FileRecord {
	t.Helper()
	record, err := NewFileRecord(filepath.Join(t.TempDir(), "nested", "data.json"))
	require.NoError(t, err)
	return record
}

func TestFileRecordLoadMissing(t *testing.T) {
	record := newTestFileRecord(t)
	data, err := record.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileRecordLoadEmptyFile(t *testing.T) {
	record := newTestFileRecord(t)
	require.NoError(t, os.WriteFile(record.Path(), nil, 0o644))
	data, err := record.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileRecordUpdate(t *testing.T) {
	ctx := context.Background()
	record := newTestFileRecord(t)

	err := record.Update(ctx, func(data []byte) ([]byte, error) {
		assert.Nil(t, data)
		return []byte(`{"a":1}`), nil
	})
	require.NoError(t, err)

	data, err := record.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(record.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestFileRecordUpdateErrorKeepsData(t *testing.T) {
	ctx := context.Background()
	record := newTestFileRecord(t)
	require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
		return []byte("before"), nil
	}))

	boom := errors.New("boom")
	err := record.Update(ctx, func([]byte) ([]byte, error) {
		return []byte("after"), boom
	})
	assert.True(t, errors.Is(err, boom))

	data, err := record.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))

	// the lock was released on the error path
	require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
		return []byte("again"), nil
	}))
}

func TestFileRecordUnchangedSkipsWrite(t *testing.T) {
	ctx := context.Background()
	record := newTestFileRecord(t)
	require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
		return []byte("same"), nil
	}))
	before, err := os.Stat(record.Path())
	require.NoError(t, err)

	require.NoError(t, record.Update(ctx, func(data []byte) ([]byte, error) {
		return data, nil
	}))
	after, err := os.Stat(record.Path())
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "data file was replaced")
}

func TestFileRecordLockedByOtherHolder(t *testing.T) {
	record := newTestFileRecord(t)
	record.attempts = 2

	holder := flock.New(record.Path() + lockSuffix)
	ok, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Unlock()

	err = record.Update(context.Background(), func(data []byte) ([]byte, error) {
		t.Fatal("update ran while the record was locked")
		return data, nil
	})
	assert.True(t, errors.Is(err, ErrLocked))

	_, err = record.Load(context.Background())
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestFileRecordConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "counter.json")
	const writers = 8
	const increments = 10

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// separate records stand in for separate processes
			record, err := NewFileRecord(path)
			if !assert.NoError(t, err) {
				return
			}
			for j := 0; j < increments; j++ {
				err := record.Update(ctx, func(data []byte) ([]byte, error) {
					var n int
					if data != nil {
						if err := json.Unmarshal(data, &n); err != nil {
							return nil, err
						}
					}
					return json.Marshal(n + 1)
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	record, err := NewFileRecord(path)
	require.NoError(t, err)
	data, err := record.Load(ctx)
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, writers*increments, n)
}

func TestFileRecordContract(t *testing.T) {
	testRecordContract(t, func(t *testing.T) func() Record {
		path := filepath.Join(t.TempDir(), "record.json")
		return func() Record {
			record, err := NewFileRecord(path)
			require.NoError(t, err)
			return record
		}
	})
}
