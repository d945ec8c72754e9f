package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/vibo/internal/domain/category"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/pkg/logger"
	"github.com/okian/vibo/pkg/metrics"
)

// PlayerInput describes a player to create.
type PlayerInput struct {
	// ID is optional; a UUID is generated when empty.
	ID               string
	DisplayName      string
	IsGhost          bool
	StartingCategory category.Category
}

// CreatePlayer registers a player at the initial rating of their starting
// category.
func (s *Service) CreatePlayer(ctx context.Context, in PlayerInput) (model.Player, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return model.Player{}, fmt.Errorf("%w: display name is required", rating.ErrInvalidInput)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	st, err := rating.NewState(id, in.StartingCategory)
	if err != nil {
		return model.Player{}, err
	}

	p := model.Player{
		ID:               id,
		DisplayName:      name,
		IsGhost:          in.IsGhost,
		StartingCategory: in.StartingCategory,
		Rating:           st.Rating,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return model.Player{}, err
	}
	s.index.Set(p.ID, p.Rating)
	metrics.UpdatePlayersTotal(s.index.Len())

	s.logger.Info(ctx, "player created",
		logger.String("player_id", p.ID),
		logger.String("category", p.StartingCategory.String()),
		logger.Bool("ghost", p.IsGhost),
	)
	return p, nil
}

// Player returns one player.
func (s *Service) Player(ctx context.Context, id string) (model.Player, error) {
	return s.store.Player(ctx, id)
}

// Players returns every player ordered by id.
func (s *Service) Players(ctx context.Context) ([]model.Player, error) {
	return s.store.Players(ctx)
}
