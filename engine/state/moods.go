package state

import "github.com/nathoo/worldweaver/types"

// WeatherMoods maps a weather value to the mood modifiers it contributes.
var WeatherMoods = map[string]map[string]float64{
	"rainy":  {"melancholy": 0.2},
	"stormy": {"tension": 0.3},
	"clear":  {"optimism": 0.1},
}

// TimeOfDayMoods maps a time of day to the mood modifiers it contributes.
var TimeOfDayMoods = map[string]map[string]float64{
	"night":   {"fear": 0.1, "mystery": 0.2},
	"morning": {"energy": 0.1},
}

// MoodModifiers sums the table entries that apply to env.
func MoodModifiers(env types.Environment) map[string]float64 {
	out := map[string]float64{}
	for mood, v := range WeatherMoods[env.Weather] {
		out[mood] += v
	}
	for mood, v := range TimeOfDayMoods[env.TimeOfDay] {
		out[mood] += v
	}
	return out
}
