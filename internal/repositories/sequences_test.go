package repositories

import (
	"context"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sort"
	"sync"
	"testing"
)

func Test_Sequences_Reserve_ReturnsConsecutiveBlocks(t *testing.T) {
	repo := NewSequencesRepository(newTestDbContext(t).DB)
	ctx := context.Background()

	first, err := repo.Reserve(ctx, models.CandidateSequence, 3)
	require.NoError(t, err)
	second, err := repo.Reserve(ctx, models.CandidateSequence, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(4), second)

	current, err := repo.Current(ctx, models.CandidateSequence)
	require.NoError(t, err)
	assert.Equal(t, int64(5), current)
}

func Test_Sequences_Reserve_NamespacesAreIndependent(t *testing.T) {
	repo := NewSequencesRepository(newTestDbContext(t).DB)
	ctx := context.Background()

	_, err := repo.Reserve(ctx, models.CandidateSequence, 10)
	require.NoError(t, err)

	start, err := repo.Reserve(ctx, models.EmploymentRecordSequence, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), start)
}

func Test_Sequences_Reserve_UnknownSequenceFails(t *testing.T) {
	repo := NewSequencesRepository(newTestDbContext(t).DB)

	_, err := repo.Reserve(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrSequenceUnavailable)

	_, err = repo.Reserve(context.Background(), models.CandidateSequence, 0)
	assert.Error(t, err)
}

func Test_Sequences_Reserve_ConcurrentBlocksAreDisjoint(t *testing.T) {
	repo := NewSequencesRepository(newTestDbContext(t).DB)

	sizes := []int{1, 5, 3, 8, 2, 7, 4, 6, 1, 9, 2, 3}
	type block struct{ start, size int64 }

	var mu sync.Mutex
	var blocks []block
	var wg sync.WaitGroup
	for _, size := range sizes {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			start, err := repo.Reserve(context.Background(), models.CandidateSequence, size)
			assert.NoError(t, err)
			mu.Lock()
			blocks = append(blocks, block{start, int64(size)})
			mu.Unlock()
		}(size)
	}
	wg.Wait()

	require.Len(t, blocks, len(sizes))
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].start < blocks[j].start })

	var total int64
	next := blocks[0].start
	for _, b := range blocks {
		assert.Equal(t, next, b.start, "blocks must be contiguous and disjoint")
		next = b.start + b.size
		total += b.size
	}
	assert.Equal(t, blocks[0].start+total, next)
}
