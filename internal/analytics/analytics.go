// Package analytics derives business insight scores from weather snapshots.
// Every function here is a pure mapping: no state, no I/O, identical input
// always yields identical output.
package analytics

import (
	"strings"

	"github.com/wxgate/weather-gateway/internal/model"
)

// Insight is one business domain's read on a snapshot: a bounded 0..100
// score plus a categorical rating and concrete recommendations.
type Insight struct {
	Score           int      `json:"score"`
	Rating          string   `json:"rating"`
	Recommendations []string `json:"recommendations"`
}

// Result bundles all derived insights for one snapshot.
type Result struct {
	ComfortLevel    string   `json:"comfort_level"`
	WeatherScore    int      `json:"weather_score"`
	Activities      []string `json:"activity_recommendations"`
	Retail          Insight  `json:"retail_impact"`
	Agriculture     Insight  `json:"agriculture_conditions"`
	Events          Insight  `json:"outdoor_events_suitability"`
	Energy          Insight  `json:"energy_demand_forecast"`
	Recommendations []string `json:"business_recommendations"`
}

// Derive computes the full insight set for a snapshot. Input is normalized
// to metric first so scoring bands mean the same thing in every unit system.
func Derive(snap model.WeatherSnapshot) Result {
	m := snap.Metric()
	temp := m.Temperature
	desc := strings.ToLower(m.Description)

	return Result{
		ComfortLevel:    ComfortLevel(temp, m.Humidity),
		WeatherScore:    WeatherScore(temp, m.Humidity, desc),
		Activities:      activities(temp, desc),
		Retail:          Retail(temp, desc),
		Agriculture:     Agriculture(temp, m.Humidity, desc),
		Events:          Events(temp, m.WindSpeed, desc),
		Energy:          Energy(temp),
		Recommendations: businessRecommendations(temp, desc),
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ComfortLevel bands temperature and humidity into a coarse label.
func ComfortLevel(temp, humidity float64) string {
	switch {
	case temp >= 18 && temp <= 24 && humidity >= 40 && humidity <= 60:
		return "optimal"
	case temp >= 15 && temp <= 28 && humidity >= 30 && humidity <= 70:
		return "comfortable"
	case temp >= 10 && temp <= 32 && humidity >= 20 && humidity <= 80:
		return "acceptable"
	default:
		return "uncomfortable"
	}
}

// WeatherScore rates general conditions 0..100: base 50, adjusted by
// temperature band, humidity band, and sky condition.
func WeatherScore(temp, humidity float64, desc string) int {
	score := 50

	switch {
	case temp >= 18 && temp <= 25:
		score += 30
	case temp >= 15 && temp <= 30:
		score += 20
	case temp >= 10 && temp <= 35:
		score += 10
	}

	switch {
	case humidity >= 40 && humidity <= 60:
		score += 20
	case humidity >= 30 && humidity <= 70:
		score += 10
	}

	switch {
	case strings.Contains(desc, "clear"):
		score += 20
	case strings.Contains(desc, "clouds"):
		score += 10
	case strings.Contains(desc, "storm"):
		score -= 30
	case strings.Contains(desc, "rain"):
		score -= 20
	}

	return clamp(score)
}

// Retail scores expected foot traffic.
func Retail(temp float64, desc string) Insight {
	switch {
	case strings.Contains(desc, "rain"):
		return Insight{
			Score:           25,
			Rating:          "low",
			Recommendations: []string{"umbrellas", "indoor entertainment", "delivery promotions"},
		}
	case temp > 30:
		return Insight{
			Score:           30,
			Rating:          "low",
			Recommendations: []string{"cooling products", "beverages", "indoor activities"},
		}
	case temp >= 20 && temp <= 28 && strings.Contains(desc, "clear"):
		return Insight{
			Score:           85,
			Rating:          "high",
			Recommendations: []string{"outdoor products", "seasonal items"},
		}
	default:
		return Insight{Score: 50, Rating: "normal"}
	}
}

// Agriculture scores growing conditions.
func Agriculture(temp, humidity float64, desc string) Insight {
	score := 60
	rating := "moderate"
	var recs []string

	switch {
	case temp >= 15 && temp <= 25 && humidity >= 50 && humidity <= 70:
		score = 90
		rating = "excellent"
	case temp > 35 || humidity < 30:
		score = 30
		rating = "challenging"
		recs = append(recs, "increase irrigation")
	}

	if strings.Contains(desc, "rain") {
		recs = append(recs, "reduce irrigation", "monitor pest activity")
	}
	if temp > 30 && humidity > 70 {
		score = clamp(score - 20)
		recs = append(recs, "high pest risk: inspect crops")
	}

	return Insight{Score: score, Rating: rating, Recommendations: recs}
}

// Events scores outdoor event suitability.
func Events(temp, windSpeed float64, desc string) Insight {
	switch {
	case strings.Contains(desc, "rain") || strings.Contains(desc, "storm"):
		return Insight{
			Score:           20,
			Rating:          "poor",
			Recommendations: []string{"indoor events", "covered areas", "backup indoor venue"},
		}
	case temp >= 18 && temp <= 28 && strings.Contains(desc, "clear") && windSpeed < 10:
		return Insight{
			Score:           90,
			Rating:          "excellent",
			Recommendations: []string{"outdoor concerts", "festivals", "sports events"},
		}
	case temp > 32:
		return Insight{
			Score:           55,
			Rating:          "fair",
			Recommendations: []string{"shade structures", "hydration stations", "evening events"},
		}
	default:
		return Insight{Score: 70, Rating: "good"}
	}
}

// Energy scores expected electricity demand (high score = high demand).
func Energy(temp float64) Insight {
	switch {
	case temp > 28:
		return Insight{
			Score:           85,
			Rating:          "high",
			Recommendations: []string{"use fans", "close curtains", "avoid heat-generating appliances"},
		}
	case temp < 15:
		return Insight{
			Score:           85,
			Rating:          "high",
			Recommendations: []string{"seal windows", "use programmable thermostat", "wear layers"},
		}
	default:
		return Insight{Score: 50, Rating: "normal"}
	}
}

func activities(temp float64, desc string) []string {
	switch {
	case strings.Contains(desc, "rain") || strings.Contains(desc, "drizzle"):
		return []string{"indoor activities", "museum visits", "shopping"}
	case strings.Contains(desc, "clear") && temp >= 20 && temp <= 28:
		return []string{"outdoor sports", "hiking", "picnic"}
	case temp > 30:
		return []string{"swimming", "indoor activities", "early morning exercise"}
	case temp < 10:
		return []string{"indoor activities", "winter sports", "hot beverages"}
	default:
		return []string{"walking", "sightseeing", "outdoor dining"}
	}
}

func businessRecommendations(temp float64, desc string) []string {
	switch {
	case strings.Contains(desc, "rain"):
		return []string{
			"Promote indoor delivery services",
			"Increase inventory of weather-related products",
			"Offer weather-based discounts",
		}
	case temp > 30:
		return []string{
			"Stock cooling products and beverages",
			"Adjust operating hours to avoid peak heat",
			"Promote air-conditioned spaces",
		}
	case temp >= 20 && temp <= 28:
		return []string{
			"Promote outdoor activities and products",
			"Extend outdoor seating capacity",
			"Plan outdoor marketing events",
		}
	default:
		return nil
	}
}
