package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/wxgate/weather-gateway/internal/model"
)

// RangeStat summarizes one field over a period.
type RangeStat struct {
	Average float64 `json:"average"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// HistoryStats aggregates a historical series. A reading counts as wet when
// its precipitation probability is at least 50.
type HistoryStats struct {
	Temperature RangeStat `json:"temperature"`
	Humidity    RangeStat `json:"humidity"`
	Pressure    RangeStat `json:"pressure"`
	Readings    int       `json:"readings"`
	WetReadings int       `json:"wet_readings"`
}

// HistoryPatterns describes variability across consecutive readings.
type HistoryPatterns struct {
	Volatility           string `json:"volatility"`            // minimal | moderate | high
	DominantConditions   string `json:"dominant_conditions"`
	TemperatureStability string `json:"temperature_stability"` // stable | variable
}

type SeasonalInsight struct {
	Season           string `json:"season"`
	TypicalForSeason bool   `json:"typical_for_season"`
}

type RetailImpact struct {
	FavorableReadings   int     `json:"favorable_readings"`
	ChallengingReadings int     `json:"challenging_readings"`
	ImpactScore         float64 `json:"impact_score"` // 0..100
}

type AgricultureImpact struct {
	GrowingConditions string `json:"growing_conditions"` // favorable | challenging
}

type EventsImpact struct {
	SuitableReadings int     `json:"suitable_readings"`
	CancellationRisk float64 `json:"weather_cancellation_risk"` // percent
}

type HistoryImpact struct {
	Retail      RetailImpact      `json:"retail"`
	Agriculture AgricultureImpact `json:"agriculture"`
	Events      EventsImpact      `json:"events"`
}

// HistoryReport is the derived view attached to a historical series.
type HistoryReport struct {
	Statistics HistoryStats    `json:"statistics"`
	Patterns   HistoryPatterns `json:"weather_patterns"`
	Seasonal   SeasonalInsight `json:"seasonal_insights"`
	Impact     HistoryImpact   `json:"business_impact"`
	Summary    string          `json:"climate_summary"`
}

const wetThreshold = 50.0

// AnalyzeHistory derives statistics, pattern, seasonal, and business-impact
// summaries from a historical series. Pure and deterministic; an empty
// series yields a zero report. Input is normalized to metric first.
func AnalyzeHistory(series model.Forecast) HistoryReport {
	if len(series) == 0 {
		return HistoryReport{}
	}
	norm := make(model.Forecast, len(series))
	for i, s := range series {
		norm[i] = s.Metric()
	}

	stats := historyStats(norm)
	return HistoryReport{
		Statistics: stats,
		Patterns:   weatherPatterns(norm),
		Seasonal:   seasonalInsight(norm, stats),
		Impact:     businessImpact(norm),
		Summary:    climateSummary(stats),
	}
}

func rangeStat(series model.Forecast, field func(model.WeatherSnapshot) float64) RangeStat {
	min, max, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, s := range series {
		v := field(s)
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += v
	}
	return RangeStat{
		Average: round1(sum / float64(len(series))),
		Minimum: round1(min),
		Maximum: round1(max),
	}
}

func historyStats(series model.Forecast) HistoryStats {
	wet := 0
	for _, s := range series {
		if s.PrecipProb >= wetThreshold {
			wet++
		}
	}
	return HistoryStats{
		Temperature: rangeStat(series, func(s model.WeatherSnapshot) float64 { return s.Temperature }),
		Humidity:    rangeStat(series, func(s model.WeatherSnapshot) float64 { return s.Humidity }),
		Pressure:    rangeStat(series, func(s model.WeatherSnapshot) float64 { return s.Pressure }),
		Readings:    len(series),
		WetReadings: wet,
	}
}

func weatherPatterns(series model.Forecast) HistoryPatterns {
	if len(series) < 2 {
		return HistoryPatterns{
			Volatility:           "minimal",
			DominantConditions:   strings.ToLower(series[0].Description),
			TemperatureStability: "stable",
		}
	}

	// Spread of consecutive temperature deltas.
	minD, maxD := math.Inf(1), math.Inf(-1)
	for i := 1; i < len(series); i++ {
		d := series[i].Temperature - series[i-1].Temperature
		minD = math.Min(minD, d)
		maxD = math.Max(maxD, d)
	}
	spread := maxD - minD

	volatility := "moderate"
	if spread > 10 {
		volatility = "high"
	}
	stability := "stable"
	if spread >= 5 {
		stability = "variable"
	}
	return HistoryPatterns{
		Volatility:           volatility,
		DominantConditions:   dominantConditions(series),
		TemperatureStability: stability,
	}
}

// dominantConditions returns the most frequent description; ties break on
// first appearance so the result is deterministic.
func dominantConditions(series model.Forecast) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, s := range series {
		d := strings.ToLower(s.Description)
		counts[d]++
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}

func seasonalInsight(series model.Forecast, stats HistoryStats) SeasonalInsight {
	var season string
	switch series[0].Timestamp.UTC().Month() {
	case 12, 1, 2:
		season = "winter"
	case 3, 4, 5:
		season = "spring"
	case 6, 7, 8:
		season = "summer"
	default:
		season = "autumn"
	}
	avg := stats.Temperature.Average
	typical := (season == "summer" && avg > 20) || (season == "winter" && avg < 10)
	return SeasonalInsight{Season: season, TypicalForSeason: typical}
}

func businessImpact(series model.Forecast) HistoryImpact {
	n := len(series)
	wet, hot, cold := 0, 0, 0
	for _, s := range series {
		switch {
		case s.PrecipProb >= wetThreshold:
			wet++
		case s.Temperature > 30:
			hot++
		case s.Temperature < 5:
			cold++
		}
	}

	favorable := n - wet - hot - cold
	growing := "challenging"
	if float64(wet) > 0.2*float64(n) && float64(hot) < 0.3*float64(n) {
		growing = "favorable"
	}
	return HistoryImpact{
		Retail: RetailImpact{
			FavorableReadings:   favorable,
			ChallengingReadings: wet + hot + cold,
			ImpactScore:         round1(float64(favorable) / float64(n) * 100),
		},
		Agriculture: AgricultureImpact{GrowingConditions: growing},
		Events: EventsImpact{
			SuitableReadings: n - wet,
			CancellationRisk: round1(float64(wet) / float64(n) * 100),
		},
	}
}

func climateSummary(stats HistoryStats) string {
	avgTemp := stats.Temperature.Average
	avgHum := stats.Humidity.Average

	var climate string
	switch {
	case avgTemp > 25 && avgHum > 70:
		climate = "tropical"
	case avgTemp > 20 && avgHum < 40:
		climate = "arid"
	case avgTemp >= 10 && avgTemp <= 25:
		climate = "temperate"
	case avgTemp < 10:
		climate = "cold"
	default:
		climate = "moderate"
	}

	rain := "infrequent"
	switch {
	case float64(stats.WetReadings) > 0.4*float64(stats.Readings):
		rain = "frequent"
	case float64(stats.WetReadings) > 0.2*float64(stats.Readings):
		rain = "moderate"
	}

	return fmt.Sprintf("%s conditions with %s precipitation; average temperature %.1f C over %d readings",
		climate, rain, avgTemp, stats.Readings)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
