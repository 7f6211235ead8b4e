package config

import (
	"sort"

	"github.com/san-kum/massfeed/internal/recipe"
)

var Presets = map[string]recipe.Recipe{
	"demo": recipe.New("demo",
		recipe.TimedSpec(10, 0.3),
		recipe.BolusSpec(15),
		recipe.LinearSpec(-1, 0),
	),
	"bolus": recipe.New("bolus",
		recipe.BolusSpec(20),
	),
	"hold": recipe.New("hold",
		recipe.TimedSpec(60, 1),
	),
	"ramp-up": recipe.New("ramp-up",
		recipe.TimedSpec(6, 0.5),
		recipe.LinearSpec(120, 180),
	),
	"fed-batch": recipe.New("fed-batch",
		recipe.BolusSpec(5),
		recipe.TimedSpec(12, 2),
		recipe.LinearSpec(-2, 1.5),
		recipe.BolusSpec(3),
	),
}

func GetPreset(name string) (recipe.Recipe, bool) {
	r, ok := Presets[name]
	return r, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
