package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"music-concierge/internal/domain"
)

const refreshTTL = 30 * time.Minute

// Cache is the process-wide lazy cache of platform accounts.
type Cache struct {
	platform domain.MusicPlatform

	mu          sync.Mutex
	accounts    []domain.Account
	lastRefresh time.Time
	now         func() time.Time
}

// NewCache builds the account cache over the platform client.
func NewCache(platform domain.MusicPlatform) *Cache {
	return &Cache{platform: platform, now: time.Now}
}

// refreshLocked walks every account page. Caller holds the mutex.
func (c *Cache) refreshLocked(ctx context.Context) error {
	var (
		all    []domain.Account
		cursor string
	)
	for {
		page, err := c.platform.AccountsPage(ctx, cursor)
		if err != nil {
			return err
		}
		all = append(all, page.Accounts...)
		if !page.HasNext {
			break
		}
		cursor = page.EndCursor
	}
	c.accounts = all
	c.lastRefresh = c.now()
	return nil
}

func (c *Cache) ensureFresh(ctx context.Context) error {
	if len(c.accounts) > 0 && c.now().Sub(c.lastRefresh) <= refreshTTL {
		return nil
	}
	return c.refreshLocked(ctx)
}

// match rank buckets, lower sorts first.
const (
	rankExact = iota
	rankPrefix
	rankSubstring
)

// Search returns accounts whose business name contains the query,
// ranked exact, then prefix, then substring; ties keep platform order.
func (c *Cache) Search(ctx context.Context, query string) ([]domain.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	type ranked struct {
		account domain.Account
		rank    int
		pos     int
	}
	var hits []ranked
	for i, a := range c.accounts {
		name := strings.ToLower(a.BusinessName)
		switch {
		case name == q:
			hits = append(hits, ranked{a, rankExact, i})
		case strings.HasPrefix(name, q):
			hits = append(hits, ranked{a, rankPrefix, i})
		case strings.Contains(name, q):
			hits = append(hits, ranked{a, rankSubstring, i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].pos < hits[j].pos
	})
	out := make([]domain.Account, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.account)
	}
	return out, nil
}
