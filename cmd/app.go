package cmd

import (
	"fmt"
	"time"

	"covinance/internal/alias"
	"covinance/internal/config"
	"covinance/internal/db"
	"covinance/internal/engine"
	"covinance/internal/facade"
	"covinance/internal/gamestate"
	"covinance/internal/market"
	"covinance/internal/remote"
)

// app is the wired component graph shared by serve and ask.
type app struct {
	cfg    *config.Config
	db     *db.DB
	remote *remote.Client
	market *market.Service
	facade *facade.Facade
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(remote.Options{
		BaseURL:        cfg.Remote.BaseURL,
		UserAgent:      cfg.Remote.UserAgent,
		Timeout:        cfg.Remote.Timeout,
		MaxConcurrency: cfg.Remote.MaxConcurrency,
		MaxRetries:     cfg.Remote.MaxRetries,
		RetryBackoff:   cfg.Remote.RetryBackoff,
	})

	svc := market.New(client, database, market.Options{
		TTL:                cfg.Cache.TTL,
		CoordinateTTL:      cfg.Cache.CoordinateTTL,
		Capacity:           cfg.Cache.Capacity,
		MaxConcurrency:     cfg.Remote.MaxConcurrency,
		TaskTimeout:        taskTimeout(cfg.Remote),
		MaxResults:         cfg.Route.MaxResults,
		StalenessThreshold: cfg.Route.StalenessThreshold,
	})

	aliases, err := alias.Load(alias.Options{Threshold: cfg.Alias.FuzzyThreshold})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("load aliases: %w", err)
	}

	journalDir := cfg.Game.JournalDir
	if journalDir == "" {
		journalDir = gamestate.DefaultJournalDir()
	}
	game := gamestate.NewResolver(gamestate.JournalReader{Dir: journalDir})

	planner := engine.NewPlanner(engine.Options{
		TopN:           cfg.Route.TopN,
		SpeedLyPerHour: cfg.Route.SpeedLyPerHour,
		JumpTime:       cfg.Route.JumpTime,
		TradeOverhead:  cfg.Route.TradeOverhead,
		ChainMaxHops:   cfg.Route.ChainMaxHops,
	})

	return &app{
		cfg:    cfg,
		db:     database,
		remote: client,
		market: svc,
		facade: facade.New(svc, aliases, game, planner, facade.Options{DefaultRadius: cfg.Route.DefaultRadius}),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// taskTimeout bounds one fan-out sub-query: every attempt plus the pause
// between them.
func taskTimeout(rc config.RemoteConfig) time.Duration {
	retries := rc.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return rc.Timeout*time.Duration(1+retries) + rc.RetryBackoff*time.Duration(retries) + time.Second
}
