package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	var mu sync.Mutex
	flushed := make([][]interface{}, 0)

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc: func(ctx context.Context, batch []interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			flushed = append(flushed, batch)
			return nil
		},
		TableName:    "test",
		MaxBatchSize: 3,
		MaxAge:       time.Hour, // Never flush by age in this test
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, 1))
	require.NoError(t, bw.Add(ctx, 2))
	assert.Equal(t, 2, bw.BufferSize())

	// Third item hits MaxBatchSize and triggers a flush
	require.NoError(t, bw.Add(ctx, 3))
	assert.Equal(t, 0, bw.BufferSize())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushed, 1)
	assert.Len(t, flushed[0], 3)
}

func TestBatchWriter_StopFlushesRemaining(t *testing.T) {
	var mu sync.Mutex
	total := 0

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc: func(ctx context.Context, batch []interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			total += len(batch)
			return nil
		},
		TableName:    "test",
		MaxBatchSize: 100,
		MaxAge:       time.Hour,
	})

	ctx := context.Background()
	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, "a"))
	require.NoError(t, bw.Add(ctx, "b"))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, bw.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, total)
}

func TestBatchWriter_FlushEmptyIsNoop(t *testing.T) {
	calls := 0
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc: func(ctx context.Context, batch []interface{}) error {
			calls++
			return nil
		},
		TableName: "test",
	})

	require.NoError(t, bw.Flush(context.Background()))
	assert.Zero(t, calls)
}
