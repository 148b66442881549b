package lru

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf[V any](items []Item[V]) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

// checkLinks 校验链表与索引一致：正向/反向各走 size 步，键集合与 index 相同
func checkLinks[V any](t *testing.T, c *Cache[V]) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.index)
	require.LessOrEqual(t, size, c.capacity)
	require.LessOrEqual(t, len(c.nodes), c.capacity)
	if size == 0 {
		assert.Equal(t, none, c.head)
		assert.Equal(t, none, c.tail)
		return
	}
	require.Equal(t, none, c.nodes[c.head].prev)
	require.Equal(t, none, c.nodes[c.tail].next)

	seen := make(map[string]bool, size)
	steps := 0
	last := none
	for i := c.head; i != none; i = c.nodes[i].next {
		k := c.nodes[i].key
		require.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
		idx, ok := c.index[k]
		require.True(t, ok, "key %q missing from index", k)
		require.Equal(t, i, idx)
		last = i
		steps++
		require.LessOrEqual(t, steps, size)
	}
	assert.Equal(t, size, steps)
	assert.Equal(t, c.tail, last)

	back := 0
	for i := c.tail; i != none; i = c.nodes[i].prev {
		back++
		require.LessOrEqual(t, back, size)
	}
	assert.Equal(t, size, back)
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		c, err := New[int](capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, c)
	}
	c, err := New[int](1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Cap())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Items())
}

func TestNew_CapacityAboveInt32(t *testing.T) {
	big := int64(math.MaxInt32) + 1
	if int64(int(big)) != big {
		t.Skip("int is 32 bits")
	}
	c, err := New[int](int(big))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Nil(t, c)

	c, err = New[int](math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, c.Cap())
}

func TestRecencyOrder(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)

	c.Put("A", "a")
	c.Put("B", "b")
	c.Put("C", "c")

	assert.Equal(t, []Item[string]{{Key: "C", Value: "c"}, {Key: "B", Value: "b"}}, c.Items())
	_, ok := c.Get("A")
	assert.False(t, ok)
	checkLinks(t, c)
}

func TestGetPromotes(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)

	c.Put("A", 1)
	c.Put("B", 2)
	v, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	c.Put("C", 3)

	assert.Equal(t, []string{"C", "A"}, keysOf(c.Items()))
	_, ok = c.Get("B")
	assert.False(t, ok)
	checkLinks(t, c)
}

func TestPutUpdatesInPlace(t *testing.T) {
	c, err := New[string](3)
	require.NoError(t, err)

	c.Put("A", "v1")
	c.Put("B", "x")
	c.Put("A", "v2")

	assert.Equal(t, 2, c.Len())
	v, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, []string{"A", "B"}, c.Keys())
	checkLinks(t, c)
}

func TestMissLeavesStateUnchanged(t *testing.T) {
	c, err := New[int](3)
	require.NoError(t, err)
	c.Put("A", 1)
	c.Put("B", 2)
	before := c.Items()

	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, before, c.Items())
	assert.Equal(t, 2, c.Len())
}

func TestZeroValueIsDistinctFromMiss(t *testing.T) {
	c, err := New[[]string](2)
	require.NoError(t, err)
	c.Put("empty", []string{})
	c.Put("nil", nil)

	v, ok := c.Get("empty")
	assert.True(t, ok)
	assert.Empty(t, v)
	_, ok = c.Get("nil")
	assert.True(t, ok)
	_, ok = c.Get("absent")
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	c, err := New[any](4)
	require.NoError(t, err)
	values := map[string]any{
		"list":   []int{1, 2, 3},
		"record": map[string]string{"screen_name": "alice"},
		"scalar": 42,
		"zero":   0,
	}
	for k, v := range values {
		c.Put(k, v)
		got, ok := c.Get(k)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestEvictsFirstInserted(t *testing.T) {
	for _, n := range []int{1, 2, 5, 64} {
		t.Run(fmt.Sprintf("cap=%d", n), func(t *testing.T) {
			c, err := New[int](n)
			require.NoError(t, err)
			for i := 0; i <= n; i++ {
				c.Put(fmt.Sprintf("k%d", i), i)
			}
			_, ok := c.Get("k0")
			assert.False(t, ok)
			assert.Equal(t, n, c.Len())
			for i := 1; i <= n; i++ {
				_, ok := c.Get(fmt.Sprintf("k%d", i))
				assert.True(t, ok)
			}
			checkLinks(t, c)
		})
	}
}

func TestSingleEntry(t *testing.T) {
	c, err := New[string](1)
	require.NoError(t, err)

	c.Put("A", "a")
	checkLinks(t, c)
	c.Put("B", "b")

	_, ok := c.Get("A")
	assert.False(t, ok)
	assert.Equal(t, []Item[string]{{Key: "B", Value: "b"}}, c.Items())
	checkLinks(t, c)

	c.Put("B", "b2")
	v, _ := c.Get("B")
	assert.Equal(t, "b2", v)
	checkLinks(t, c)
}

func TestPromoteTail(t *testing.T) {
	c, err := New[int](3)
	require.NoError(t, err)
	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("C", 3)

	_, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C", "B"}, c.Keys())
	checkLinks(t, c)

	c.Put("D", 4)
	assert.Equal(t, []string{"D", "A", "C"}, c.Keys())
	checkLinks(t, c)
}

func TestItemsIsSnapshot(t *testing.T) {
	c, err := New[int](3)
	require.NoError(t, err)
	c.Put("A", 1)
	c.Put("B", 2)

	items := c.Items()
	items[0].Value = 100
	c.Put("C", 3)

	assert.Len(t, items, 2)
	v, _ := c.Get("B")
	assert.Equal(t, 2, v)
	assert.Equal(t, []string{"B", "C", "A"}, c.Keys())
}

func TestEvictCallback(t *testing.T) {
	var evicted []string
	c, err := NewWithEvict[int](2, func(key string, value int) {
		evicted = append(evicted, fmt.Sprintf("%s=%d", key, value))
	})
	require.NoError(t, err)

	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("A", 10)
	assert.Empty(t, evicted)
	c.Put("C", 3)
	c.Put("D", 4)

	assert.Equal(t, []string{"B=2", "A=10"}, evicted)
}

func TestSlotsRecycled(t *testing.T) {
	c, err := New[int](8)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}
	assert.Len(t, c.nodes, 8)
	assert.Equal(t, 8, c.Len())
	checkLinks(t, c)
}

func TestArenaNeverExceedsCapacity(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)

	c.Put("k0", 0)
	c.Put("k1", 1)
	c.Put("k2", 2)

	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.nodes, 2)
	assert.Empty(t, c.free)
	assert.Equal(t, []string{"k2", "k1"}, c.Keys())

	c.Put("k3", 3)
	assert.Len(t, c.nodes, 2)
	assert.Empty(t, c.free)
	assert.Equal(t, []string{"k3", "k2"}, c.Keys())
	checkLinks(t, c)
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	c, err := New[int](16)
	require.NoError(t, err)

	// 对照模型：切片头部为最近使用
	var model []string
	touch := func(k string) {
		for i, m := range model {
			if m == k {
				model = append(model[:i], model[i+1:]...)
				break
			}
		}
		model = append([]string{k}, model...)
	}

	for step := 0; step < 5000; step++ {
		k := fmt.Sprintf("k%d", r.Intn(40))
		if r.Intn(3) == 0 {
			_, ok := c.Get(k)
			inModel := false
			for _, m := range model {
				if m == k {
					inModel = true
				}
			}
			require.Equal(t, inModel, ok)
			if ok {
				touch(k)
			}
		} else {
			c.Put(k, step)
			touch(k)
			if len(model) > 16 {
				model = model[:16]
			}
		}
		require.LessOrEqual(t, c.Len(), 16)
	}
	assert.Equal(t, model, c.Keys())
	checkLinks(t, c)
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New[int](32)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				k := fmt.Sprintf("k%d", (g*7+i)%100)
				if i%2 == 0 {
					c.Put(k, i)
				} else {
					c.Get(k)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 32, c.Len())
	checkLinks(t, c)
}

func BenchmarkPutGet(b *testing.B) {
	c, _ := New[int](1024)
	keys := make([]string, 4096)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%len(keys)]
		if _, ok := c.Get(k); !ok {
			c.Put(k, i)
		}
	}
}
