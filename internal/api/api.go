// Package api serves the read-only HTTP routes next to the websocket endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardarena/internal/game/match"
	"cardarena/internal/ports"
	"cardarena/internal/services/queue"

	"github.com/hashicorp/go-hclog"
)

// MatchLister exposes the live matches.
type MatchLister interface {
	ListAll() []*match.Match
}

// QueueStats exposes matchmaking counters.
type QueueStats interface {
	Stats() queue.Stats
}

// Deps are the collaborators the read-only routes query.
type Deps struct {
	Catalog     ports.Catalog
	Identity    ports.Identity
	Persistence ports.Persistence
	Matches     MatchLister
	Queue       QueueStats
	Logger      hclog.Logger
}

// Register mounts every route on mux.
func Register(mux *http.ServeMux, d Deps) {
	if d.Logger == nil {
		d.Logger = hclog.NewNullLogger()
	}
	mux.HandleFunc("GET /cards", CreateCardsHandler(d.Catalog, d.Logger))
	mux.HandleFunc("GET /users/{username}", CreateProfileHandler(d.Identity, d.Persistence, d.Logger))
	mux.HandleFunc("GET /matches/live", CreateLiveMatchesHandler(d.Matches))
	mux.HandleFunc("GET /queue", CreateQueueHandler(d.Queue))
}

// DTOs

// Profile is a user with their win/loss record.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Matches  int    `json:"matches"`
}

// LiveMatch is the public summary of a match in progress.
type LiveMatch struct {
	ID                 int64     `json:"id"`
	Round              int       `json:"round"`
	Players            [2]string `json:"players"`
	CurrentPlayerIndex int       `json:"currentPlayerIndex"`
}

type errorBody struct {
	Error string `json:"error"`
}

// CreateCardsHandler serves the full card catalog.
func CreateCardsHandler(catalog ports.Catalog, logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := catalog.AllCards(r.Context())
		if err != nil {
			logger.Error("list cards", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

// CreateProfileHandler serves GET /users/{username}.
func CreateProfileHandler(identity ports.Identity, persistence ports.Persistence, logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		user, err := identity.ResolveUser(r.Context(), username)
		if errors.Is(err, ports.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "user not found"})
			return
		}
		if err != nil {
			logger.Error("resolve user", "user", username, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "identity unavailable"})
			return
		}
		rec, err := persistence.PlayerRecord(r.Context(), user.ID)
		if err != nil {
			logger.Error("player record", "user_id", user.ID, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "persistence unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, Profile{
			ID:       user.ID,
			Username: user.Username,
			Wins:     rec.Wins,
			Losses:   rec.Losses,
			Matches:  rec.Matches,
		})
	}
}

// CreateLiveMatchesHandler lists live matches without any hand contents.
func CreateLiveMatchesHandler(matches MatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := matches.ListAll()
		out := make([]LiveMatch, 0, len(all))
		for _, m := range all {
			out = append(out, LiveMatch{
				ID:                 m.ID,
				Round:              m.Round,
				Players:            [2]string{m.Players[0].Username, m.Players[1].Username},
				CurrentPlayerIndex: m.CurrentPlayerIndex,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateQueueHandler serves the waiting and pairing counts.
func CreateQueueHandler(q QueueStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, q.Stats())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
