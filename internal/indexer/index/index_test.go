package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeWeights(t *testing.T) {
	assert.Equal(t, int64(10), Name.Weight())
	assert.Equal(t, int64(5), Category.Weight())
	assert.Equal(t, int64(2), Tag.Weight())
	assert.Equal(t, int64(1), NameSeg.Weight())
}

func TestAddRemove_ReferenceCounted(t *testing.T) {
	x := New()
	k := Key{ID: 1, Type: Name}

	x.Add("Chess", k)
	x.Add("Chess", k)
	assert.Equal(t, int64(2), x.Count("Chess", k))

	require.True(t, x.Remove("Chess", k))
	assert.Equal(t, int64(1), x.Count("Chess", k))
	assert.Equal(t, 1, x.Terms())

	require.True(t, x.Remove("Chess", k))
	assert.Equal(t, int64(0), x.Count("Chess", k))
	assert.Equal(t, 0, x.Terms(), "empty buckets are pruned")

	assert.False(t, x.Remove("Chess", k))
}

func TestRemove_LeavesOtherKeys(t *testing.T) {
	x := New()
	x.Add("go", Key{ID: 1, Type: Tag})
	x.Add("go", Key{ID: 2, Type: Tag})

	require.True(t, x.Remove("go", Key{ID: 1, Type: Tag}))
	assert.Equal(t, PostingList{{ID: 2, Type: Tag, Count: 1}}, x.Bucket("go"))
	assert.False(t, x.Remove("go", Key{ID: 2, Type: Name}))
}

func TestNormalize_FoldsCaseAndWidth(t *testing.T) {
	x := New()
	x.Add("ＡＣＭ", Key{ID: 4, Type: Name})

	assert.Equal(t, int64(1), x.Count("acm", Key{ID: 4, Type: Name}))
	assert.Equal(t, Normalize("Acm"), Normalize("ACM"))
}

func TestScanAndSnapshot(t *testing.T) {
	x := New()
	x.Add("b", Key{ID: 2, Type: Tag})
	x.Add("a", Key{ID: 1, Type: Category})
	x.Add("a", Key{ID: 1, Type: Name})

	var total int64
	x.Scan("a", func(k Key, count int64) {
		total += k.Type.Weight() * count
	})
	assert.Equal(t, int64(15), total)

	snap := x.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Term)
	assert.Equal(t, PostingList{
		{ID: 1, Type: Name, Count: 1},
		{ID: 1, Type: Category, Count: 1},
	}, snap[0].Postings)
	for _, term := range snap {
		for _, p := range term.Postings {
			assert.Positive(t, p.Count)
		}
	}
}
