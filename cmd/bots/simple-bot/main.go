// simple-bot is a scripted player: it queues, joins the match it is given and plays
// the most damaging card it can afford until the match ends.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"cardarena/internal/auth"
	"cardarena/internal/game/match"
	"cardarena/internal/network"
	"cardarena/internal/services/cluster"
	"cardarena/internal/services/queue"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type options struct {
	addr, consul, service, user, secret string
	games                               int
}

func main() {
	var o options
	cmd := &cobra.Command{
		Use:          "simple-bot",
		Short:        "Scripted arena player",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return o.run()
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "localhost:8080", "server host:port")
	f.StringVar(&o.consul, "consul", "", "consul addresses; when set the server is discovered")
	f.StringVar(&o.service, "service", "arena", "service name to discover")
	f.StringVar(&o.user, "user", fmt.Sprintf("bot-%d", os.Getpid()), "username")
	f.StringVar(&o.secret, "secret", os.Getenv("ARENA_AUTH_JWT_SECRET"), "jwt secret shared with the server")
	f.IntVar(&o.games, "games", 1, "matches to play before exiting")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (o options) run() error {
	log := hclog.New(&hclog.LoggerOptions{Name: "bot." + o.user, Level: hclog.Info})

	target := o.addr
	if o.consul != "" {
		found, err := cluster.DiscoverAny(o.consul, o.service)
		if err != nil {
			return fmt.Errorf("discover %s: %w", o.service, err)
		}
		target = found
	}

	tok, err := auth.NewVerifier(o.secret, "").Sign(o.user, time.Hour)
	if err != nil {
		return err
	}

	u := url.URL{Scheme: "ws", Host: target, Path: "/ws"}
	header := http.Header{"Authorization": []string{"Bearer " + tok}}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}
	defer conn.Close()

	b := &bot{conn: conn, log: log, remaining: o.games}
	return b.run()
}

type bot struct {
	conn      *websocket.Conn
	log       hclog.Logger
	remaining int
}

func (b *bot) send(typ string, payload any) error {
	msg, err := network.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return b.conn.WriteJSON(msg)
}

func (b *bot) run() error {
	if err := b.send("enqueue", nil); err != nil {
		return err
	}
	for {
		var msg network.Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Type {
		case queue.EventMatchFound:
			b.log.Info("opponent found, waiting for countdown")
		case queue.EventGameStart:
			var gs queue.GameStart
			if err := json.Unmarshal(msg.Payload, &gs); err != nil {
				return err
			}
			b.log.Info("match starting", "match_id", gs.MatchID)
			if err := b.send("joinMatch", map[string]any{"matchId": gs.MatchID}); err != nil {
				return err
			}
		case queue.EventGameError, queue.EventMatchCancelled:
			b.log.Warn("pairing failed, queueing again", "event", msg.Type)
			if err := b.send("enqueue", nil); err != nil {
				return err
			}
		case "gameStateUpdate":
			var st match.PublicState
			if err := json.Unmarshal(msg.Payload, &st); err != nil {
				return err
			}
			done, err := b.onState(st)
			if err != nil || done {
				return err
			}
		case "error":
			b.log.Warn("command rejected", "payload", string(msg.Payload))
		}
	}
}

// onState plays a turn when it is ours. It reports true once the last game ended.
func (b *bot) onState(st match.PublicState) (bool, error) {
	if st.IsFinished {
		won := st.WinnerID != nil && *st.WinnerID == st.Players[0].UserID
		b.log.Info("match over", "match_id", st.ID, "won", won, "rounds", st.Round)
		b.remaining--
		if b.remaining <= 0 {
			return true, nil
		}
		return false, b.send("enqueue", nil)
	}
	if !st.YourTurn {
		return false, nil
	}
	time.Sleep(300 * time.Millisecond)

	me := st.Players[0]
	best := -1
	for i, c := range me.Cards {
		if c.Cost <= me.Coins && (best < 0 || c.Damage > me.Cards[best].Damage) {
			best = i
		}
	}
	if best < 0 {
		return false, b.send("passRound", map[string]any{"matchId": st.ID})
	}
	return false, b.send("playCard", map[string]any{"matchId": st.ID, "cardId": me.Cards[best].ID})
}
