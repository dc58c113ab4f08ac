package pattern

import "github.com/solatis/mailscore/internal/types"

// Cache memoises per-record work shared by every pattern evaluated against
// the same record: the address classification leaves (~l ~u ~p ~P), keyed by
// whether all addresses or any address had to qualify, and the decoded body.
//
// A Cache belongs to one record. Reusing it for another record returns stale
// answers; create a new one per record.
type Cache struct {
	results map[cacheKey]bool

	body       *types.Body
	bodyErr    error
	bodyLoaded bool
}

type cacheKey struct {
	op      Op
	allAddr bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{results: make(map[cacheKey]bool, 8)}
}

func (c *Cache) lookup(op Op, allAddr bool) (bool, bool) {
	v, ok := c.results[cacheKey{op, allAddr}]
	return v, ok
}

func (c *Cache) store(op Op, allAddr bool, v bool) {
	c.results[cacheKey{op, allAddr}] = v
}

func (c *Cache) loadBody(msg Message) (*types.Body, error) {
	if !c.bodyLoaded {
		c.body, c.bodyErr = msg.Body()
		c.bodyLoaded = true
	}
	return c.body, c.bodyErr
}
