package cmd

import (
	"fmt"
	"sort"
	"time"

	"covinance/internal/db"
	"covinance/internal/facade"
	"covinance/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var statsServer string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics of a running server and the local coordinate store",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsServer, "server", "", "server base URL (default from config)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Section("Coordinate store")
	fmt.Printf("  %-14s %d\n", "systems", database.CountSystems())

	base := statsServer
	if base == "" {
		base = "http://" + cfg.Server.Addr
	}
	var resp struct {
		facade.Response
		Data facade.CacheReport `json:"data"`
	}
	r, err := resty.New().SetTimeout(5 * time.Second).R().
		SetContext(cmd.Context()).
		SetResult(&resp).
		Get(base + "/api/cache/stats")
	logger.Section("Cache")
	if err != nil || r.IsError() {
		fmt.Printf("  server at %s not reachable\n", base)
		return nil
	}
	printCacheReport(resp.Data)
	return nil
}

func printCacheReport(r facade.CacheReport) {
	names := make([]string, 0, len(r.Caches))
	for name := range r.Caches {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("  %-10s %8s %8s %8s %8s %8s %8s\n", "cache", "size", "hits", "misses", "inflight", "evicted", "hit%")
	for _, name := range names {
		c := r.Caches[name]
		fmt.Printf("  %-10s %8d %8d %8d %8d %8d %7.1f%%\n",
			name, c.Size, c.Hits, c.Misses, c.InflightHits, c.Evictions, c.HitRate*100)
	}
	fmt.Printf("  total %d entries, hit rate %.1f%%, %d remote calls saved\n", r.Entries, r.HitRate*100, r.CallsSaved)
}
