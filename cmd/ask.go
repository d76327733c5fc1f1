package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"covinance/internal/facade"

	"github.com/spf13/cobra"
)

var (
	askCommodity    string
	askSystem       string
	askTo           string
	askRadius       float64
	askLimit        int
	askMaxHops      int
	askIncompatible bool
	askJSON         bool
)

var askCmd = &cobra.Command{
	Use:   "ask <action>",
	Short: "Run one command and print the answer",
	Long: "Run one command against live market data. Actions:\n  " +
		strings.Join(actionNames(), "\n  "),
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	f := askCmd.Flags()
	f.StringVarP(&askCommodity, "commodity", "c", "", "commodity name, as spoken")
	f.StringVarP(&askSystem, "system", "s", "", "origin system (default: current system from the journal)")
	f.StringVar(&askTo, "to", "", "destination system for trade_route")
	f.Float64VarP(&askRadius, "radius", "r", 0, "search radius in ly (default from config)")
	f.IntVarP(&askLimit, "limit", "n", 0, "number of results")
	f.IntVar(&askMaxHops, "max-hops", 0, "hop limit for chain_route")
	f.BoolVar(&askIncompatible, "show-incompatible", false, "also list stations the ship cannot dock at")
	f.BoolVar(&askJSON, "json", false, "print the full response as JSON")
}

func actionNames() []string {
	names := make([]string, len(facade.Actions))
	for i, a := range facade.Actions {
		names[i] = string(a)
	}
	return names
}

// buildRequest maps CLI input onto a facade request. Spaces and dashes in the
// action are accepted ("best buy", "best-buy").
func buildRequest(action string) facade.Request {
	action = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(action)))
	return facade.Request{
		Action:           facade.Action(action),
		Commodity:        askCommodity,
		System:           askSystem,
		To:               askTo,
		RadiusLy:         askRadius,
		Limit:            askLimit,
		MaxHops:          askMaxHops,
		ShowIncompatible: askIncompatible,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.facade.Handle(cmd.Context(), buildRequest(args[0]))
	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Println(resp.Summary)
	}
	if resp.Status != facade.StatusOK {
		return fmt.Errorf("%s", resp.Reason)
	}
	return nil
}
