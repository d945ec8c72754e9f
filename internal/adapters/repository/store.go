// Package repository persists players and the match log and keeps the
// in-memory ranking index.
package repository

import (
	"context"

	"github.com/okian/vibo/internal/domain/model"
)

// Store provides read/write access to players and recorded matches.
//
// Ratings and counters on players are a projection of the match log; the
// store only persists what the rating engine computed.
type Store interface {
	// CreatePlayer inserts p. Returns ErrDuplicate if the id exists.
	CreatePlayer(ctx context.Context, p model.Player) error

	// Player returns one player or ErrNotFound.
	Player(ctx context.Context, id string) (model.Player, error)

	// Players returns all players ordered by id.
	Players(ctx context.Context) ([]model.Player, error)

	// Match returns one match or ErrNotFound.
	Match(ctx context.Context, id string) (model.Match, error)

	// Matches returns the whole log in replay order.
	Matches(ctx context.Context) ([]model.Match, error)

	// PlayerMatches returns the matches id played, most recent first.
	PlayerMatches(ctx context.Context, id string) ([]model.Match, error)

	// RecordMatch inserts m together with the updated state of its four
	// players in one transaction. Returns ErrDuplicate if m.ID exists and
	// ErrNotFound if a player does not.
	RecordMatch(ctx context.Context, m model.Match, players [4]model.Player) error

	// ApplyReplay writes the result of a recomputation in one transaction.
	ApplyReplay(ctx context.Context, w ReplayWrite) error

	Close() error
}

// ReplayWrite is the persisted part of a recomputation.
type ReplayWrite struct {
	// Players carries the new rating and counters per player.
	Players []model.Player
	// Changes replaces the recorded changes of these matches.
	Changes map[string]model.EloChanges
	// Cleared lists matches whose recorded changes are dropped because they
	// could not be replayed.
	Cleared []string
}
