package repository

import (
	"math/rand/v2"
	"sync"
)

// Treap-based in-memory ranking index.
//
// Ordering: rating DESC, then player id ASC. "less" means ranks earlier, so
// an in-order walk yields the ranking from best to worst. Every node keeps
// its subtree size, which gives rank and top-N in O(log n + n).

// RankEntry is one row of the ranking.
type RankEntry struct {
	Rank     int
	PlayerID string
	Rating   int
}

type node struct {
	id     string
	rating int
	prio   uint64
	left   *node
	right  *node
	size   int
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

// less reports whether (aRating, aID) ranks before (bRating, bID).
func less(aRating int, aID string, bRating int, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
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

func insert(n *node, id string, rating int, prio uint64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: prio, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating int) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		// rotate the higher-priority child up until n is a leaf
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// countAbove returns how many entries have a rating strictly above r.
func countAbove(n *node, r int) int {
	count := 0
	for n != nil {
		if n.rating > r {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTop appends up to limit entries in rank order.
func collectTop(n *node, limit int, out *[]RankEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, RankEntry{PlayerID: n.id, Rating: n.rating})
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// RankingIndex orders players by rating. Safe for concurrent use.
type RankingIndex struct {
	mu   sync.RWMutex
	root *node
	byID map[string]int
}

// NewRankingIndex returns an empty index.
func NewRankingIndex() *RankingIndex {
	return &RankingIndex{byID: make(map[string]int)}
}

// Set inserts id or moves it to its new rating.
func (x *RankingIndex) Set(id string, rating int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.set(id, rating)
}

func (x *RankingIndex) set(id string, rating int) {
	if old, ok := x.byID[id]; ok {
		if old == rating {
			return
		}
		x.root = deleteNode(x.root, id, old)
	}
	x.byID[id] = rating
	x.root = insert(x.root, id, rating, rand.Uint64())
}

// SetMany applies several updates under one lock.
func (x *RankingIndex) SetMany(ratings map[string]int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, r := range ratings {
		x.set(id, r)
	}
}

// Rank returns the competition rank of id: one plus the number of players
// rated strictly higher.
func (x *RankingIndex) Rank(id string) (RankEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	r, ok := x.byID[id]
	if !ok {
		return RankEntry{}, ErrNotFound
	}
	return RankEntry{Rank: countAbove(x.root, r) + 1, PlayerID: id, Rating: r}, nil
}

// Top returns the best n entries. Equal ratings share a rank and the next
// rank skips accordingly (1, 1, 3).
func (x *RankingIndex) Top(n int) ([]RankEntry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]RankEntry, 0, min(n, len(x.byID)))
	collectTop(x.root, n, &out)
	for i := range out {
		if i > 0 && out[i].Rating == out[i-1].Rating {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// Len returns the number of indexed players.
func (x *RankingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}
