// 包 lru：进程内定长 LRU 缓存，供查询层做旁路缓存（先查缓存，未命中再回源并写回）
package lru

import (
	"errors"
	"math"
	"sync"
)

// ErrInvalidCapacity：容量非正数时构造失败
var ErrInvalidCapacity = errors.New("lru: capacity must be positive")

// none：空链接（无前驱/后继/头尾）
const none int32 = -1

// node：条目槽位；prev/next 为槽位下标，不持有指针
type node[V any] struct {
	key   string
	value V
	prev  int32
	next  int32
}

// Item：Items 导出的键值对快照
type Item[V any] struct {
	Key   string
	Value V
}

// Cache：定长 LRU 缓存
// 结构：nodes 为连续槽位，链表以下标串联（head=最近使用，tail=最久未使用）；index 为键到槽位的映射；
// free 回收被淘汰条目的槽位，槽位总数不超过容量。
// 约束：单把互斥锁保护 index 与链表，Get/Put/淘汰均为同一临界区，全局只有一条最近使用顺序。
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	nodes    []node[V]
	index    map[string]int32
	free     []int32
	head     int32
	tail     int32
	onEvict  func(key string, value V)
}

// New：按容量构造缓存；capacity<=0 或超过 math.MaxInt32 返回 ErrInvalidCapacity
func New[V any](capacity int) (*Cache[V], error) {
	return NewWithEvict[V](capacity, nil)
}

// NewWithEvict：同 New，并在每次容量淘汰时同步回调 onEvict（回调内不得再调用本缓存）
func NewWithEvict[V any](capacity int, onEvict func(key string, value V)) (*Cache[V], error) {
	if capacity <= 0 || int64(capacity) > math.MaxInt32 {
		return nil, ErrInvalidCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		nodes:    make([]node[V], 0, min(capacity, 1024)),
		index:    make(map[string]int32, min(capacity, 1024)),
		head:     none,
		tail:     none,
		onEvict:  onEvict,
	}, nil
}

// Get：命中时提升为最近使用并返回值；未命中返回零值与 false（不是错误）
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(i)
	return c.nodes[i].value, true
}

// Put：已存在则原地覆盖并提升；不存在时若已满先淘汰尾部一个条目，再插入头部
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	if i, ok := c.index[key]; ok {
		c.nodes[i].value = value
		c.moveToFront(i)
		c.mu.Unlock()
		return
	}
	var (
		evicted  bool
		evictKey string
		evictVal V
	)
	// 先淘汰再分配，被淘汰的槽位直接复用
	if len(c.index) >= c.capacity {
		evictKey, evictVal = c.removeTail()
		evicted = true
	}
	i := c.alloc(key, value)
	c.index[key] = i
	c.pushFront(i)
	fn := c.onEvict
	c.mu.Unlock()

	if evicted && fn != nil {
		fn(evictKey, evictVal)
	}
}

// Items：按最近使用到最久未使用的顺序返回全部条目的快照；不改变访问顺序
func (c *Cache[V]) Items() []Item[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item[V], 0, len(c.index))
	for i := c.head; i != none; i = c.nodes[i].next {
		out = append(out, Item[V]{Key: c.nodes[i].key, Value: c.nodes[i].value})
	}
	return out
}

// Keys：最近使用到最久未使用的键序列，便于调试
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.index))
	for i := c.head; i != none; i = c.nodes[i].next {
		out = append(out, c.nodes[i].key)
	}
	return out
}

// Len：当前条目数
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Cap：构造时确定的容量
func (c *Cache[V]) Cap() int { return c.capacity }

func (c *Cache[V]) alloc(key string, value V) int32 {
	n := node[V]{key: key, value: value, prev: none, next: none}
	if k := len(c.free); k > 0 {
		i := c.free[k-1]
		c.free = c.free[:k-1]
		c.nodes[i] = n
		return i
	}
	c.nodes = append(c.nodes, n)
	return int32(len(c.nodes) - 1)
}

func (c *Cache[V]) pushFront(i int32) {
	n := &c.nodes[i]
	n.prev = none
	n.next = c.head
	if c.head != none {
		c.nodes[c.head].prev = i
	}
	c.head = i
	if c.tail == none {
		c.tail = i
	}
}

func (c *Cache[V]) unlink(i int32) {
	n := &c.nodes[i]
	if n.prev != none {
		c.nodes[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != none {
		c.nodes[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = none, none
}

func (c *Cache[V]) moveToFront(i int32) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

// removeTail：摘除尾部条目并回收槽位；唯一条目被摘除时 head/tail 同时置空
func (c *Cache[V]) removeTail() (string, V) {
	i := c.tail
	c.unlink(i)
	n := c.nodes[i]
	delete(c.index, n.key)
	var zero V
	c.nodes[i] = node[V]{value: zero, prev: none, next: none}
	c.free = append(c.free, i)
	return n.key, n.value
}
