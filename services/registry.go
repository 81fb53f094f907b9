package services

import (
	"time"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
)

// gameRef correlates an external game id with a bracket match.
type gameRef struct {
	TournamentID string
	MatchID      string
}

type tournamentEntry struct {
	t              *brackets.Tournament
	regTimer       *time.Timer
	matchTimers    map[string]*time.Timer
	spectatorConns map[string]models.Connection
}

// Registry owns every process-wide index: tournaments by id, player to tournament
// and game id to match. It is not synchronized; the tournament service guards it.
type Registry struct {
	tournaments map[string]*tournamentEntry
	players     map[string]string
	games       map[int]gameRef
}

func NewRegistry() *Registry {
	return &Registry{
		tournaments: make(map[string]*tournamentEntry),
		players:     make(map[string]string),
		games:       make(map[int]gameRef),
	}
}

func (r *Registry) tournament(id string) (*tournamentEntry, bool) {
	e, ok := r.tournaments[id]
	return e, ok
}

func (r *Registry) addTournament(t *brackets.Tournament) *tournamentEntry {
	e := &tournamentEntry{
		t:              t,
		matchTimers:    make(map[string]*time.Timer),
		spectatorConns: make(map[string]models.Connection),
	}
	r.tournaments[t.ID] = e
	return e
}

// removeTournament drops the tournament together with every index entry pointing at it.
func (r *Registry) removeTournament(id string) {
	delete(r.tournaments, id)
	for playerID, tid := range r.players {
		if tid == id {
			delete(r.players, playerID)
		}
	}
	for gameID, ref := range r.games {
		if ref.TournamentID == id {
			delete(r.games, gameID)
		}
	}
}

// TournamentOf returns the tournament the player currently belongs to.
func (r *Registry) TournamentOf(playerID string) (string, bool) {
	id, ok := r.players[playerID]
	return id, ok
}

// reservePlayer enforces the one-tournament-per-player rule.
func (r *Registry) reservePlayer(playerID, tournamentID string) error {
	if current, ok := r.players[playerID]; ok && current != tournamentID {
		return ErrAlreadyInTournament
	}
	r.players[playerID] = tournamentID
	return nil
}

func (r *Registry) releasePlayer(playerID, tournamentID string) {
	if r.players[playerID] == tournamentID {
		delete(r.players, playerID)
	}
}

func (r *Registry) bindGame(gameID int, ref gameRef) {
	r.games[gameID] = ref
}

func (r *Registry) game(gameID int) (gameRef, bool) {
	ref, ok := r.games[gameID]
	return ref, ok
}

func (r *Registry) releaseGame(gameID int) {
	delete(r.games, gameID)
}

func (r *Registry) Len() int {
	return len(r.tournaments)
}
