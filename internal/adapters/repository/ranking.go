package repository

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/okian/leadscore/pkg/metrics"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank           int                           `json:"rank"`
	CompanyID      string                        `json:"company_id"`
	OutreachScore  int                           `json:"outreach_score"`
	Composite      int                           `json:"composite"`
	Recommendation engagement.RecommendationType `json:"recommendation_type"`
	AsOf           time.Time                     `json:"as_of"`
}

// Ranking is an in-memory treap of the latest score per company.
//
// Ordering: outreach score DESC, composite DESC, company id ASC. In-order
// traversal yields the leaderboard from best to worst and subtree sizes give
// a company's position in O(log n).
type Ranking struct {
	mu   sync.RWMutex
	root *node
	byID map[string]Entry
}

type key struct {
	outreach  int
	composite int
	id        string
}

func keyOf(e Entry) key { return key{outreach: e.OutreachScore, composite: e.Composite, id: e.CompanyID} }

// before reports whether a ranks ahead of b.
func before(a, b key) bool {
	if a.outreach != b.outreach {
		return a.outreach > b.outreach
	}
	if a.composite != b.composite {
		return a.composite > b.composite
	}
	return a.id < b.id
}

type node struct {
	k     key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority is a hash of the id so the tree shape does not depend on
// insertion order.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, k key) *node {
	if n == nil {
		return &node{k: k, prio: priority(k.id), size: 1}
	}
	if before(k, n.k) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.k == k:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, k)
		}
	case before(k, n.k):
		n.left = remove(n.left, k)
	default:
		n.right = remove(n.right, k)
	}
	fix(n)
	return n
}

// position returns the 1-based in-order index of k, or 0 when absent.
func position(n *node, k key) int {
	offset := 0
	for n != nil {
		switch {
		case n.k == k:
			return offset + nsize(n.left) + 1
		case before(k, n.k):
			n = n.left
		default:
			offset += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

func collect(n *node, limit int, byID map[string]Entry, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, byID, out)
	if len(*out) < limit {
		e := byID[n.k.id]
		e.Rank = len(*out) + 1
		*out = append(*out, e)
	}
	collect(n.right, limit, byID, out)
}

// NewRanking returns an empty ranking.
func NewRanking() *Ranking {
	return &Ranking{byID: make(map[string]Entry)}
}

// Upsert replaces the company's entry. Unlike a best-score board the latest
// value always wins, so scores can go down.
func (r *Ranking) Upsert(_ context.Context, e Entry) error {
	if e.CompanyID == "" {
		return ErrInvalidInput
	}
	e.Rank = 0

	r.mu.Lock()
	if old, ok := r.byID[e.CompanyID]; ok {
		r.root = remove(r.root, keyOf(old))
	}
	r.byID[e.CompanyID] = e
	r.root = insert(r.root, keyOf(e))
	n := len(r.byID)
	r.mu.Unlock()

	metrics.UpdateRankedCompanies(n)
	return nil
}

// Remove drops a company. Removing an unknown id is not an error.
func (r *Ranking) Remove(_ context.Context, companyID string) {
	r.mu.Lock()
	if old, ok := r.byID[companyID]; ok {
		r.root = remove(r.root, keyOf(old))
		delete(r.byID, companyID)
	}
	n := len(r.byID)
	r.mu.Unlock()

	metrics.UpdateRankedCompanies(n)
}

// Rank returns the company's entry with its 1-based position.
func (r *Ranking) Rank(_ context.Context, companyID string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[companyID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	e.Rank = position(r.root, keyOf(e))
	return e, nil
}

// TopN returns up to n entries in rank order.
func (r *Ranking) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.byID) {
		n = len(r.byID)
	}
	out := make([]Entry, 0, n)
	collect(r.root, n, r.byID, &out)
	return out, nil
}

// Count returns the number of ranked companies.
func (r *Ranking) Count(context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
