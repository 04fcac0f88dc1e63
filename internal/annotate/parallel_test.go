package annotate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-mm/internal/vcf"
)

// emptyQuerier knows nothing about any variant.
var emptyQuerier = QueryFunc(func(context.Context, VariantKey) ([]Evidence, error) {
	return nil, nil
})

func makeItems(n int) <-chan WorkItem {
	ch := make(chan WorkItem, n)
	for i := range n {
		ch <- WorkItem{
			Seq: i,
			Record: &vcf.Record{
				Chrom: "1",
				Pos:   int64(100 + i),
				Ref:   "A",
				Alt:   "T",
			},
		}
	}
	close(ch)
	return ch
}

func TestParallelAnnotate_OrderPreservation(t *testing.T) {
	ann := NewAnnotator(emptyQuerier, GRCh38)

	items := makeItems(200)
	results := ann.ParallelAnnotate(context.Background(), items, 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelAnnotate_SingleWorker(t *testing.T) {
	ann := NewAnnotator(emptyQuerier, GRCh38)

	items := makeItems(50)
	results := ann.ParallelAnnotate(context.Background(), items, 1)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 50)
	for i, seq := range collected {
		assert.Equal(t, i, seq)
	}
}

func TestParallelAnnotate_RecordPreserved(t *testing.T) {
	ann := NewAnnotator(emptyQuerier, GRCh38)

	items := makeItems(10)
	results := ann.ParallelAnnotate(context.Background(), items, 4)

	err := OrderedCollect(results, func(r WorkResult) error {
		assert.Equal(t, int64(100+r.Seq), r.Record.Pos)
		return nil
	})
	require.NoError(t, err)
}

func TestParallelAnnotate_EmptyInput(t *testing.T) {
	ann := NewAnnotator(emptyQuerier, GRCh38)

	ch := make(chan WorkItem)
	close(ch)
	results := ann.ParallelAnnotate(context.Background(), ch, 4)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	ann := NewAnnotator(emptyQuerier, GRCh38)

	items := makeItems(100)
	results := ann.ParallelAnnotate(context.Background(), items, 4)

	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		if count == 5 {
			return fmt.Errorf("stop at 5")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 5, count)
}

func TestParallelAnnotate_ProducesAnnotations(t *testing.T) {
	q := QueryFunc(func(_ context.Context, key VariantKey) ([]Evidence, error) {
		return []Evidence{{Variant: fmt.Sprintf("G:%d", key.Pos), ArticleCount: 1}}, nil
	})
	ann := NewAnnotator(q, GRCh38)

	items := makeItems(5)
	results := ann.ParallelAnnotate(context.Background(), items, 2)

	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		assert.Equal(t, StatusAnnotated, r.Status)
		assert.Equal(t, 1, r.Queries)
		v, ok := r.Record.GetInfo(DefaultInfoKey)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("T:G%%3A%d:1::", r.Record.Pos), v)
		return nil
	})
	require.NoError(t, err)
}
