package gamestate

import (
	"strings"

	"covinance/internal/galaxy"
)

// shipPads maps journal ship identifiers to the landing pad each hull needs.
var shipPads = map[string]galaxy.PadSize{
	"sidewinder":               galaxy.PadSmall,
	"eagle":                    galaxy.PadSmall,
	"hauler":                   galaxy.PadSmall,
	"adder":                    galaxy.PadSmall,
	"empire_eagle":             galaxy.PadSmall,
	"viper":                    galaxy.PadSmall,
	"viper_mkiv":               galaxy.PadSmall,
	"cobramkiii":               galaxy.PadSmall,
	"cobramkiv":                galaxy.PadSmall,
	"cobramkv":                 galaxy.PadSmall,
	"diamondback":              galaxy.PadSmall,
	"diamondbackxl":            galaxy.PadSmall,
	"empire_courier":           galaxy.PadSmall,
	"dolphin":                  galaxy.PadSmall,
	"vulture":                  galaxy.PadSmall,
	"type6":                    galaxy.PadMedium,
	"type8":                    galaxy.PadMedium,
	"independant_trader":       galaxy.PadMedium,
	"asp":                      galaxy.PadMedium,
	"asp_scout":                galaxy.PadMedium,
	"federation_dropship":      galaxy.PadMedium,
	"federation_dropship_mkii": galaxy.PadMedium,
	"federation_gunship":       galaxy.PadMedium,
	"ferdelance":               galaxy.PadMedium,
	"krait_mkii":               galaxy.PadMedium,
	"krait_light":              galaxy.PadMedium,
	"mamba":                    galaxy.PadMedium,
	"python":                   galaxy.PadMedium,
	"python_nx":                galaxy.PadMedium,
	"typex":                    galaxy.PadMedium,
	"typex_2":                  galaxy.PadMedium,
	"typex_3":                  galaxy.PadMedium,
	"mandalay":                 galaxy.PadMedium,
	"corsair":                  galaxy.PadMedium,
	"type7":                    galaxy.PadLarge,
	"type9":                    galaxy.PadLarge,
	"type9_military":           galaxy.PadLarge,
	"anaconda":                 galaxy.PadLarge,
	"federation_corvette":      galaxy.PadLarge,
	"cutter":                   galaxy.PadLarge,
	"orca":                     galaxy.PadLarge,
	"belugaliner":              galaxy.PadLarge,
	"empire_trader":            galaxy.PadLarge,
	"panthermkii":              galaxy.PadLarge,
}

// PadForShip returns the pad a ship needs and whether the ship is known.
func PadForShip(ship string) (galaxy.PadSize, bool) {
	p, ok := shipPads[strings.ToLower(strings.TrimSpace(ship))]
	return p, ok
}
