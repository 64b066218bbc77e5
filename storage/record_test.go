package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opener returns a factory of handles that all address one fresh record.
// Separate handles stand in for separate processes.
type opener func(t *testing.T) func() Record

// testRecordContract checks the behaviour every backend shares.
func testRecordContract(t *testing.T, open opener) {
	t.Run("load missing", func(t *testing.T) {
		data, err := open(t)().Load(context.Background())
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("update then load", func(t *testing.T) {
		ctx := context.Background()
		handle := open(t)
		require.NoError(t, handle().Update(ctx, func(data []byte) ([]byte, error) {
			assert.Nil(t, data)
			return []byte(`{"U1":{"channels":["general"]}}`), nil
		}))
		data, err := handle().Load(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"U1":{"channels":["general"]}}`, string(data))
	})

	t.Run("error keeps data and releases lock", func(t *testing.T) {
		ctx := context.Background()
		record := open(t)()
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
		require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
			return []byte("again"), nil
		}))
	})

	t.Run("empty data reads as absent", func(t *testing.T) {
		ctx := context.Background()
		record := open(t)()
		require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
			return []byte("x"), nil
		}))
		require.NoError(t, record.Update(ctx, func([]byte) ([]byte, error) {
			return []byte{}, nil
		}))
		data, err := record.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, data)
		require.NoError(t, record.Update(ctx, func(data []byte) ([]byte, error) {
			assert.Nil(t, data)
			return data, nil
		}))
	})

	t.Run("concurrent updates serialise", func(t *testing.T) {
		ctx := context.Background()
		handle := open(t)
		const writers = 5
		const increments = 4

		var wg conc.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Go(func() {
				record := handle()
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
			})
		}
		wg.Wait()

		data, err := handle().Load(ctx)
		require.NoError(t, err)
		var n int
		require.NoError(t, json.Unmarshal(data, &n))
		assert.Equal(t, writers*increments, n)
	})
}
