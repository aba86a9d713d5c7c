// Package freshness guards view state against out-of-order load results.
//
// A load takes a token with Next before issuing its requests and checks
// IsCurrent right before committing what it fetched. If a newer load has
// started in the meantime the check fails and the older result is dropped.
// In-flight requests are not cancelled; only their results are ignored.
package freshness

import "sync/atomic"

// Token identifies one load. The zero Token is never issued.
type Token uint64

// Gate issues tokens. The zero value is ready to use.
type Gate struct {
	current atomic.Uint64
}

// Next issues a new token and makes it the current one.
func (g *Gate) Next() Token {
	return Token(g.current.Add(1))
}

// IsCurrent reports whether t is the most recently issued token.
func (g *Gate) IsCurrent(t Token) bool {
	return t != 0 && uint64(t) == g.current.Load()
}

// Guard runs commit only if t is still current and reports whether it ran.
func (g *Gate) Guard(t Token, commit func()) bool {
	if !g.IsCurrent(t) {
		return false
	}
	commit()
	return true
}
