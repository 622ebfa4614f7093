// Command bot runs a single gateway shard with logging callbacks. It is
// the smallest end-to-end wiring of the library: config file, gateway
// discovery over REST, one shard, clean shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/raxon/discordeno/config"
	"github.com/raxon/discordeno/discord"
	"github.com/raxon/discordeno/gateway"
	"github.com/raxon/discordeno/rest"
)

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	configPath := os.Getenv("BOT_CONFIG")
	if configPath == "" {
		configPath = "./config.json"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("could not load config", "err", err)
		os.Exit(1)
	}
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Token = token
	}
	if cfg.Token == "" {
		log.Error("no token in config or DISCORD_TOKEN")
		os.Exit(1)
	}

	restClient := rest.New(cfg.Token)
	gatewayInfo, err := restClient.GetGatewayBot()
	if err != nil {
		log.Error("could not fetch gateway info", "err", err)
		os.Exit(1)
	}
	log.Info("gateway discovered", "url", gatewayInfo.URL, "recommendedShards", gatewayInfo.Shards)

	shard := gateway.New(0, cfg.Token, cfg.Intents,
		gateway.WithURL(gatewayInfo.URL),
		gateway.WithVersion(cfg.APIVersion),
		gateway.WithCompress(cfg.Compress),
		gateway.WithTotalShards(cfg.TotalShards),
		gateway.WithLogger(log),
		gateway.WithMakePresence(func() *discord.StatusUpdate {
			return &discord.StatusUpdate{Status: cfg.Status, Activities: []discord.Activity{}}
		}),
		gateway.WithEvents(gateway.Events{
			Identified: func(s *gateway.Shard) {
				log.Info("identified", "shard", s.ID, "session", s.SessionID())
			},
			Resumed: func(s *gateway.Shard) {
				log.Info("resumed", "shard", s.ID)
			},
			Disconnected: func(s *gateway.Shard) {
				log.Warn("disconnected", "shard", s.ID, "state", s.State())
			},
			Message: func(s *gateway.Shard, m gateway.Message) {
				if m.T != "" {
					log.Debug("dispatch", "shard", s.ID, "t", m.T)
				}
			},
		}),
	)

	stopWatch, err := config.Watch(configPath, time.Second, func(updated *config.Bot) {
		log.Info("config reloaded, updating presence", "status", updated.Status)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shard.EditShardStatus(ctx, discord.StatusUpdate{Status: updated.Status, Activities: []discord.Activity{}}); err != nil {
			log.Warn("could not update presence", "err", err)
		}
	}, func(err error) {
		log.Warn("config watch error", "err", err)
	})
	if err != nil {
		log.Warn("config watching disabled", "err", err)
	} else {
		defer stopWatch()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = shard.Identify(ctx)
	cancel()
	if err != nil {
		log.Error("identify failed", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shard.Shutdown()
}
