package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

func results(ids ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(ids))
	for i, id := range ids {
		out[i] = domain.ScoredChunk{Chunk: domain.Chunk{ID: id}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestKey(t *testing.T) {
	base := Key("what is attention?", 5, nil)

	assert.Equal(t, base, Key("what is attention?", 5, nil))
	assert.NotEqual(t, base, Key("what is attention?", 6, nil))
	assert.NotEqual(t, base, Key("what is attention", 5, nil))
	assert.NotEqual(t, base, Key("what is attention?", 5, domain.NewDocumentFilter("doc-a")))
	assert.Equal(t,
		Key("q", 5, domain.NewDocumentFilter("a", "b")),
		Key("q", 5, domain.NewDocumentFilter("b", "a")))
}

func TestQueryCache_GenerationInvalidates(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	key := Key("q", 3, nil)

	c.Put(key, 1, results("c1", "c2"))

	got, ok := c.Get(key, 1)
	assert.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = c.Get(key, 2)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("k", 1, results("c1"))
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k", 1)
	assert.False(t, ok)
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("a", 1, results("a"))
	c.Put("b", 1, results("b"))
	_, _ = c.Get("a", 1)
	c.Put("c", 1, results("c"))

	_, okA := c.Get("a", 1)
	_, okB := c.Get("b", 1)
	_, okC := c.Get("c", 1)
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestQueryCache_ReturnsCopies(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	c.Put("a", 1, results("a"))

	got, _ := c.Get("a", 1)
	got[0].Score = -1

	again, _ := c.Get("a", 1)
	assert.NotEqual(t, -1.0, again[0].Score)
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(100, time.Minute)
	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("k%d", i), 1, results("x"))
	}
	c.Invalidate()
	assert.Equal(t, 0, c.Size())
}
