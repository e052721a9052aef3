// Command client is a headless peer: it logs in, queues for a match and
// plays it out with the autoplayer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tidewar/client/internal/metarpc"
	relaynet "tidewar/client/internal/net"
	"tidewar/client/internal/netcfg"
	"tidewar/client/internal/peer"
	"tidewar/shared/game/types"
	"tidewar/shared/logging"
)

func main() {
	user := flag.String("user", netcfg.Username, "account name")
	pass := flag.String("pass", netcfg.Password, "account password")
	matches := flag.Int("matches", 1, "matches to play before exiting")
	catalogPath := flag.String("catalog", "", "card catalog override")
	debug := flag.Bool("debug", false, "log debug output")
	flag.Parse()
	if *debug {
		logging.SetDebug(true)
	}
	if *user == "" || *pass == "" {
		logging.Fatal("missing credentials", nil, logging.Fields{"hint": "set TIDEWAR_USER and TIDEWAR_PASS or -user/-pass"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := types.DefaultCatalog()
	if *catalogPath != "" {
		var err error
		if catalog, err = types.LoadCatalog(*catalogPath); err != nil {
			logging.Fatal("load catalog", err, logging.Fields{"path": *catalogPath})
		}
	}

	api := metarpc.New(netcfg.APIBase)
	login, err := api.LoginOrRegister(ctx, *user, *pass)
	if err != nil {
		logging.Fatal("login", err, logging.Fields{"user": *user})
	}
	logging.Info("logged in", logging.Fields{"user": login.UserID, "username": login.Username})

	for i := 0; i < *matches && ctx.Err() == nil; i++ {
		if err := playOne(ctx, api, catalog); err != nil {
			logging.Error("match failed", err, logging.Fields{"round": i + 1})
		}
	}
	if p, err := api.Profile(ctx); err == nil {
		logging.Info("profile", logging.Fields{"gems": p.Gems, "score": p.Score, "rank": p.Rank, "wins": p.Wins, "losses": p.Losses})
	}
}

func playOne(ctx context.Context, api *metarpc.Client, catalog *types.Catalog) error {
	cards, err := api.LoadUserCards(ctx)
	if err != nil {
		return err
	}
	deck := make([]types.Card, 0, len(cards.Deck))
	for _, c := range cards.Deck {
		deck = append(deck, types.Card{Type: c.Type, Level: c.Level})
	}

	conn, err := relaynet.Dial(ctx, netcfg.ServerURL, api.Token())
	if err != nil {
		return err
	}
	matched, err := conn.QueueForMatch(ctx)
	if err != nil {
		_ = conn.Close()
		return err
	}
	joined, err := conn.JoinMatch(ctx, matched.Token)
	if err != nil {
		_ = conn.Close()
		return err
	}
	logging.Info("joined match", logging.Fields{"match": joined.MatchID, "host": joined.HostID})

	s, err := peer.NewSession(joined, conn, api, peer.Options{
		Catalog:  catalog,
		Rules:    types.DefaultRules(),
		Deck:     deck,
		Autoplay: true,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	return s.Run(ctx)
}
