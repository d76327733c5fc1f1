package facade

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Action names a facade operation.
type Action string

const (
	ActionBestBuy             Action = "best_buy"
	ActionBestSell            Action = "best_sell"
	ActionBestTrade           Action = "best_trade"
	ActionTradeRoute          Action = "trade_route"
	ActionCircularRoute       Action = "circular_route"
	ActionChainRoute          Action = "chain_route"
	ActionFillCargo           Action = "fill_cargo"
	ActionProfitPerHour       Action = "profit_per_hour"
	ActionRareGoods           Action = "rare_goods"
	ActionInterstellarFactors Action = "interstellar_factors"
	ActionCacheStats          Action = "cache_stats"
	ActionCacheClear          Action = "cache_clear"
)

// Actions lists every supported action in display order.
var Actions = []Action{
	ActionBestBuy, ActionBestSell, ActionBestTrade, ActionTradeRoute,
	ActionCircularRoute, ActionChainRoute, ActionFillCargo, ActionProfitPerHour,
	ActionRareGoods, ActionInterstellarFactors, ActionCacheStats, ActionCacheClear,
}

// Request is one command. System defaults to the player's current system.
type Request struct {
	Action           Action  `json:"action" validate:"required,oneof=best_buy best_sell best_trade trade_route circular_route chain_route fill_cargo profit_per_hour rare_goods interstellar_factors cache_stats cache_clear"`
	Commodity        string  `json:"commodity,omitempty" validate:"max=64"`
	System           string  `json:"system,omitempty" validate:"max=64"`
	To               string  `json:"to,omitempty" validate:"max=64"`
	RadiusLy         float64 `json:"radius_ly,omitempty" validate:"gte=0,lte=1000"`
	Limit            int     `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	MaxHops          int     `json:"max_hops,omitempty" validate:"gte=0,lte=10"`
	ShowIncompatible bool    `json:"show_incompatible,omitempty"`
}

func (a Action) needsCommodity() bool {
	return a == ActionBestBuy || a == ActionBestSell
}

// usesRadius reports whether an empty answer could be fixed by searching wider.
func (a Action) usesRadius() bool {
	switch a {
	case ActionTradeRoute, ActionCacheStats, ActionCacheClear:
		return false
	}
	return true
}

func (a Action) usesMarket() bool {
	return a != ActionCacheStats && a != ActionCacheClear
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(Request)
		if r.Action.needsCommodity() && strings.TrimSpace(r.Commodity) == "" {
			sl.ReportError(r.Commodity, "commodity", "Commodity", "required_for_action", string(r.Action))
		}
		if r.Action == ActionTradeRoute && strings.TrimSpace(r.To) == "" {
			sl.ReportError(r.To, "to", "To", "required_for_action", string(r.Action))
		}
	}, Request{})
	return v
}

// describe turns validation failures into one short sentence.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "required_for_action":
			parts = append(parts, fmt.Sprintf("%s is required for %s", fe.Field(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "lte", "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
