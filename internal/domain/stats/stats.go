// Package stats derives reporting views from the match log.
package stats

import (
	"cmp"
	"slices"
	"time"

	"github.com/okian/vibo/internal/domain/model"
)

// HeadToHead summarises matches where A and B played on opposite teams.
type HeadToHead struct {
	PlayerA    string
	PlayerB    string
	Total      int
	WinsA      int
	WinsB      int
	FirstMatch time.Time
	LastMatch  time.Time
	// Streak is the run of consecutive wins ending with the latest match:
	// positive for A, negative for B.
	Streak int
}

// Partner summarises matches a player played alongside one partner.
type Partner struct {
	PartnerID string
	Total     int
	Won       int
	Lost      int
	WinRate   float64
	LastMatch time.Time
	// Streak is positive for consecutive wins and negative for consecutive
	// losses, counted back from the latest match.
	Streak int
}

// latest returns a copy of ms, most recent first.
func latest(ms []model.Match) []model.Match {
	out := slices.Clone(ms)
	slices.SortStableFunc(out, func(a, b model.Match) int {
		if c := b.PlayedAt.Compare(a.PlayedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// ComputeHeadToHead builds the rivalry of a against b.
func ComputeHeadToHead(a, b string, ms []model.Match) HeadToHead {
	h := HeadToHead{PlayerA: a, PlayerB: b}
	streakOpen := true
	for _, m := range latest(ms) {
		ta, tb := m.TeamOf(a), m.TeamOf(b)
		if ta == 0 || tb == 0 || ta == tb {
			continue
		}

		h.Total++
		if h.Total == 1 {
			h.LastMatch = m.PlayedAt
		}
		h.FirstMatch = m.PlayedAt

		aWon := ta == m.WinnerTeam
		if aWon {
			h.WinsA++
		} else {
			h.WinsB++
		}
		streakOpen = extend(&h.Streak, aWon, streakOpen)
	}
	return h
}

// ComputePartners lists everyone id partnered with, most frequent first.
func ComputePartners(id string, ms []model.Match) []Partner {
	byID := make(map[string]*Partner)
	open := make(map[string]bool)

	for _, m := range latest(ms) {
		slot := m.SlotOf(id)
		if slot == 0 {
			continue
		}
		// 1<->2, 3<->4
		mate := m.Players[(slot-1)^1]

		p, ok := byID[mate]
		if !ok {
			p = &Partner{PartnerID: mate, LastMatch: m.PlayedAt}
			byID[mate] = p
			open[mate] = true
		}

		won := model.TeamOfSlot(slot) == m.WinnerTeam
		p.Total++
		if won {
			p.Won++
		} else {
			p.Lost++
		}
		open[mate] = extend(&p.Streak, won, open[mate])
	}

	out := make([]Partner, 0, len(byID))
	for _, p := range byID {
		p.WinRate = model.WinRate(p.Won, p.Total)
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Partner) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Won, a.Won); c != 0 {
			return c
		}
		return cmp.Compare(a.PartnerID, b.PartnerID)
	})
	return out
}

// extend grows a signed streak while results keep the same sign, walking
// from the latest match backwards. It returns whether the streak is still
// open.
func extend(streak *int, positive, open bool) bool {
	if !open {
		return false
	}
	switch {
	case *streak == 0 && positive:
		*streak = 1
	case *streak == 0:
		*streak = -1
	case *streak > 0 && positive:
		*streak++
	case *streak < 0 && !positive:
		*streak--
	default:
		return false
	}
	return true
}
