package plate

import "sync"

// Consensus is a bounded-window majority vote over validated plates.  Once
// Quorum votes are held the most frequent one is resolved (ties go to the
// value seen first) and the window is cleared whatever happens downstream.
type Consensus struct {
	quorum int

	mu    sync.Mutex
	votes []string
}

func NewConsensus(quorum int) *Consensus {
	if quorum <= 0 {
		quorum = 3
	}
	return &Consensus{quorum: quorum, votes: make([]string, 0, quorum)}
}

func (c *Consensus) Quorum() int { return c.quorum }

// Observe records one vote.  ok is true when this vote completed the window.
func (c *Consensus) Observe(plate string) (resolved string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.votes = append(c.votes, plate)
	if len(c.votes) < c.quorum {
		return "", false
	}

	resolved = majority(c.votes)
	c.votes = c.votes[:0]
	return resolved, true
}

// Pending reports how many votes are waiting for the next resolution.
func (c *Consensus) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.votes)
}

// Reset drops any pending votes.
func (c *Consensus) Reset() {
	c.mu.Lock()
	c.votes = c.votes[:0]
	c.mu.Unlock()
}

func majority(votes []string) string {
	counts := make(map[string]int, len(votes))
	best, bestN := "", 0
	for _, v := range votes {
		counts[v]++
	}
	// Walk in arrival order so a strict > keeps the first-seen value on ties.
	for _, v := range votes {
		if n := counts[v]; n > bestN {
			best, bestN = v, n
		}
	}
	return best
}
