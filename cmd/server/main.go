package main

import (
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	"stockview/internal/api"
	"stockview/internal/config"
	"stockview/internal/insight"
	"stockview/internal/market"
	"stockview/internal/snapshot"
	"stockview/internal/store"
)

func main() {
	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	timeout := time.Duration(cfg.Market.TimeoutMs) * time.Millisecond
	providers := []market.Provider{market.NewYahooProvider(timeout)}
	if cfg.Market.AlphaVantage.APIKey != "" {
		providers = append(providers, market.NewAlphaVantageProvider(cfg.Market.AlphaVantage.APIKey, timeout))
	}
	provider := market.NewMultiProvider(providers...)

	svc := snapshot.NewService(
		provider,
		time.Duration(cfg.Market.CacheTTLSec)*time.Second,
		cfg.Market.HistoryDays,
		st,
	)

	agent := insight.New(insight.Config{
		Enabled:    cfg.Insight.Enabled,
		Model:      cfg.Insight.Model,
		APIKey:     cfg.Insight.APIKey,
		BaseURL:    cfg.Insight.BaseURL,
		ByAzure:    cfg.Insight.ByAzure,
		APIVersion: cfg.Insight.APIVersion,
		TimeoutMs:  cfg.Insight.TimeoutMs,
	})

	api.RegisterRoutes(h, svc, st, agent, cfg.Market.DisplayDays)

	log.Printf("server starting on %s (log.level=%s)", addr, cfg.Log.Level)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}
