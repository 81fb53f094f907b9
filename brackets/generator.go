package brackets

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
)

type GenerateBracketParams struct {
	Players         []*models.Player
	ThirdPlaceMatch bool
	CreatedAt       time.Time
}

type BracketGenerator interface {
	GenerateBracket(params GenerateBracketParams) (*models.Bracket, error)

	GetName() string
}

// SeededFourPlayerGenerator builds the only supported shape: two semifinals, a final and
// an optional third-place match.
type SeededFourPlayerGenerator struct{}

func NewSeededFourPlayerGenerator() BracketGenerator {
	return &SeededFourPlayerGenerator{}
}

func (g *SeededFourPlayerGenerator) GetName() string {
	return "SeededFourPlayer"
}

// GenerateBracket seeds by descending skill; ties keep join order. Semifinal A is
// seed 1 vs seed 4, semifinal B is seed 2 vs seed 3.
func (g *SeededFourPlayerGenerator) GenerateBracket(params GenerateBracketParams) (*models.Bracket, error) {
	if len(params.Players) != models.BracketSize {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedBracket, len(params.Players))
	}

	seeds := make([]*models.Player, len(params.Players))
	copy(seeds, params.Players)
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].Skill > seeds[j].Skill
	})

	newMatch := func(round, position int, p1, p2 string) *models.Match {
		return &models.Match{
			ID:        matchUID(round, position),
			Round:     round,
			Position:  position,
			Player1ID: p1,
			Player2ID: p2,
			Status:    models.MatchPending,
			CreatedAt: params.CreatedAt,
		}
	}

	b := &models.Bracket{
		Semifinals: [2]*models.Match{
			newMatch(models.RoundSemifinal, 1, seeds[0].ID, seeds[3].ID),
			newMatch(models.RoundSemifinal, 2, seeds[1].ID, seeds[2].ID),
		},
		Final: newMatch(models.RoundFinal, 1, "", ""),
	}
	if params.ThirdPlaceMatch {
		b.ThirdPlace = newMatch(models.RoundThirdPlace, 1, "", "")
	}
	return b, nil
}

func matchUID(round, position int) string {
	return fmt.Sprintf("R%dM%d", round, position)
}
