// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"

	"github.com/okian/vibo/internal/domain/category"
)

// Team numbers.
const (
	Team1 = 1
	Team2 = 2
)

// Player is a rated participant. Rating and the counters are a projection of
// the match log; StartingCategory is what replays reset to.
type Player struct {
	ID               string
	DisplayName      string
	IsGhost          bool // created by another user, no account behind it
	StartingCategory category.Category
	Rating           int
	MatchesPlayed    int
	MatchesWon       int
	CreatedAt        time.Time
}

// Category is the display label for the current rating.
func (p Player) Category() category.Category {
	return category.ForRating(p.Rating)
}

// WinRate returns the win percentage rounded to one decimal.
func (p Player) WinRate() float64 {
	return WinRate(p.MatchesWon, p.MatchesPlayed)
}

// WinRate returns won/played as a percentage rounded to one decimal, 0 when
// nothing was played.
func WinRate(won, played int) float64 {
	if played <= 0 {
		return 0
	}
	return math.Round(float64(won)/float64(played)*1000) / 10
}

// SetScore is one set of a match.
type SetScore struct {
	Team1    int  `json:"team1"`
	Team2    int  `json:"team2"`
	Tiebreak bool `json:"tiebreak,omitempty"`
}

// Match is a recorded doubles match. Players[0:2] are team 1, Players[2:4]
// are team 2. Immutable once recorded except for Changes, which a full
// recomputation regenerates.
type Match struct {
	ID         string
	PlayedAt   time.Time
	Players    [4]string
	Sets       []SetScore
	WinnerTeam int
	Venue      string
	Notes      string
	CreatedBy  string
	Changes    *EloChanges
	CreatedAt  time.Time
}

// Team returns the two player ids of team n (1 or 2).
func (m Match) Team(n int) [2]string {
	if n == Team2 {
		return [2]string{m.Players[2], m.Players[3]}
	}
	return [2]string{m.Players[0], m.Players[1]}
}

// SlotOf returns the 1-based slot of id, or 0 if id did not play.
func (m Match) SlotOf(id string) int {
	for i, p := range m.Players {
		if p == id {
			return i + 1
		}
	}
	return 0
}

// TeamOf returns the team id played for, or 0.
func (m Match) TeamOf(id string) int {
	return TeamOfSlot(m.SlotOf(id))
}

// Won reports whether id was on the winning team.
func (m Match) Won(id string) bool {
	t := m.TeamOf(id)
	return t != 0 && t == m.WinnerTeam
}

// TeamOfSlot maps slots 1,2 to team 1 and 3,4 to team 2.
func TeamOfSlot(slot int) int {
	switch slot {
	case 1, 2:
		return Team1
	case 3, 4:
		return Team2
	default:
		return 0
	}
}

// EloChange is one player's rating movement for one match.
type EloChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Change int `json:"change"`
}

// EloChanges holds the per-slot rating changes of a match.
type EloChanges struct {
	Player1 EloChange `json:"player1"`
	Player2 EloChange `json:"player2"`
	Player3 EloChange `json:"player3"`
	Player4 EloChange `json:"player4"`
}

// At returns the change of a 1-based slot.
func (c EloChanges) At(slot int) EloChange {
	switch slot {
	case 1:
		return c.Player1
	case 2:
		return c.Player2
	case 3:
		return c.Player3
	case 4:
		return c.Player4
	default:
		return EloChange{}
	}
}

// Set stores the change of a 1-based slot. Other slots are ignored.
func (c *EloChanges) Set(slot int, ch EloChange) {
	switch slot {
	case 1:
		c.Player1 = ch
	case 2:
		c.Player2 = ch
	case 3:
		c.Player3 = ch
	case 4:
		c.Player4 = ch
	}
}
