package tools

import (
	"context"
	"math/rand/v2"
	"time"
)

var weatherConditions = []string{"clear", "partly cloudy", "overcast", "light rain", "thunderstorms", "snow", "fog"}

// WeatherTool returns synthetic weather data. No weather provider is wired
// in; results are random but well formed.
type WeatherTool struct {
	now func() time.Time
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{now: time.Now}
}

func (w *WeatherTool) Definition() Definition {
	return Definition{
		Name:        "get_weather",
		Description: "Get the current weather for a location (synthetic data, no live provider).",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"location": map[string]interface{}{
					"type":        "string",
					"description": "City or place name",
				},
				"unit": map[string]interface{}{
					"type": "string",
					"enum": []string{"celsius", "fahrenheit"},
				},
			},
			"required": []string{"location"},
		},
	}
}

func (w *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	location := stringArg(args, "location")
	if location == "" {
		location = "unknown"
	}
	unit := stringArg(args, "unit")
	if unit != "fahrenheit" {
		unit = "celsius"
	}

	celsius := rand.IntN(45) - 10
	temperature := celsius
	if unit == "fahrenheit" {
		temperature = celsius*9/5 + 32
	}

	return map[string]interface{}{
		"location":    location,
		"temperature": temperature,
		"unit":        unit,
		"condition":   weatherConditions[rand.IntN(len(weatherConditions))],
		"humidity":    20 + rand.IntN(75),
		"windKph":     rand.IntN(60),
		"observedAt":  w.now().UTC().Format(time.RFC3339),
		"source":      "synthetic",
		"note":        "No weather provider is configured; values are randomly generated.",
	}, nil
}
