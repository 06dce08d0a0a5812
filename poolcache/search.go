package poolcache

import (
	"strings"

	"github.com/hedgeledger/engine/analytics"
)

// tokenAliases map symbol spellings that name the same asset. Applied to
// both the query and the pair name after normalization, so "JEWEL-USDC"
// finds the WJEWEL-USDC pool.
var tokenAliases = map[string]string{
	"wjewel":  "jewel",
	"wklay":   "klay",
	"wavax":   "avax",
	"xjewel":  "jewel",
	"usdc.e":  "usdc",
}

// canonicalize normalizes a pair name or query: lowercase, separators
// stripped, aliases folded.
func canonicalize(s string) string {
	s = analytics.NormalizePairName(s)
	for alias, canonical := range tokenAliases {
		s = strings.ReplaceAll(s, alias, canonical)
	}
	return s
}

// Search returns the pools whose pair name matches the query. Matching is
// case-, separator- and alias-insensitive substring containment against the
// current snapshot.
func (c *Cache) Search(query string) ([]analytics.Pool, error) {
	snap := c.current.Load()
	if snap == nil || len(snap.pools) == 0 {
		return nil, ErrNotReady
	}

	q := canonicalize(query)
	if q == "" {
		return nil, nil
	}

	var out []analytics.Pool
	for _, pool := range snap.pools {
		if strings.Contains(canonicalize(pool.Pair), q) {
			out = append(out, pool)
		}
	}
	return out, nil
}
