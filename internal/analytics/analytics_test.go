package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/wxgate/weather-gateway/internal/model"
)

func snap(temp, humidity, wind float64, desc string) model.WeatherSnapshot {
	return model.WeatherSnapshot{
		Location:    model.Location{City: "London", Country: "GB"},
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Temperature: temp,
		Humidity:    humidity,
		WindSpeed:   wind,
		Description: desc,
		Units:       model.UnitsMetric,
	}
}

func TestDeriveDeterministic(t *testing.T) {
	s := snap(22, 55, 4, "clear sky")
	a := Derive(s)
	b := Derive(s)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical input produced different output:\n%+v\n%+v", a, b)
	}
}

func TestScoresBounded(t *testing.T) {
	for _, temp := range []float64{-30, -5, 0, 10, 18, 25, 31, 36, 45} {
		for _, hum := range []float64{0, 25, 45, 65, 85, 100} {
			for _, desc := range []string{"clear sky", "scattered clouds", "light rain", "thunderstorm", "mist"} {
				r := Derive(snap(temp, hum, 5, desc))
				for name, score := range map[string]int{
					"weather":     r.WeatherScore,
					"retail":      r.Retail.Score,
					"agriculture": r.Agriculture.Score,
					"events":      r.Events.Score,
					"energy":      r.Energy.Score,
				} {
					if score < 0 || score > 100 {
						t.Errorf("%s score %d out of range at temp=%v hum=%v desc=%q", name, score, temp, hum, desc)
					}
				}
			}
		}
	}
}

func TestComfortLevelBands(t *testing.T) {
	cases := []struct {
		temp, hum float64
		want      string
	}{
		{21, 50, "optimal"},
		{16, 65, "comfortable"},
		{30, 75, "acceptable"},
		{38, 90, "uncomfortable"},
		{-5, 50, "uncomfortable"},
	}
	for _, c := range cases {
		if got := ComfortLevel(c.temp, c.hum); got != c.want {
			t.Errorf("ComfortLevel(%v, %v) = %q, want %q", c.temp, c.hum, got, c.want)
		}
	}
}

func TestWeatherScoreComposition(t *testing.T) {
	// Ideal: 50 base + 30 temp + 20 humidity + 20 clear = 120, clamped.
	if got := WeatherScore(22, 50, "clear sky"); got != 100 {
		t.Errorf("ideal conditions = %d, want 100", got)
	}
	// Storm outside every band: 50 - 30 = 20.
	if got := WeatherScore(40, 10, "thunderstorm"); got != 20 {
		t.Errorf("storm conditions = %d, want 20", got)
	}
	// Mild rain: 50 + 20 + 10 - 20 = 60.
	if got := WeatherScore(16, 65, "light rain"); got != 60 {
		t.Errorf("mild rain = %d, want 60", got)
	}
}

func TestRetailBranches(t *testing.T) {
	if r := Retail(22, "light rain"); r.Rating != "low" || r.Score != 25 {
		t.Errorf("rain: %+v", r)
	}
	if r := Retail(33, "clear sky"); r.Rating != "low" {
		t.Errorf("heat: %+v", r)
	}
	if r := Retail(24, "clear sky"); r.Rating != "high" || r.Score != 85 {
		t.Errorf("ideal: %+v", r)
	}
	if r := Retail(12, "overcast clouds"); r.Rating != "normal" {
		t.Errorf("default: %+v", r)
	}
}

func TestAgricultureBranches(t *testing.T) {
	if a := Agriculture(20, 60, "clear sky"); a.Rating != "excellent" || a.Score != 90 {
		t.Errorf("ideal: %+v", a)
	}
	if a := Agriculture(38, 20, "clear sky"); a.Rating != "challenging" || a.Score != 30 {
		t.Errorf("arid: %+v", a)
	}
	// Hot and humid knocks 20 off and flags pests.
	a := Agriculture(32, 80, "clear sky")
	if a.Score != 40 {
		t.Errorf("pest risk score = %d, want 40", a.Score)
	}
	if len(a.Recommendations) == 0 {
		t.Error("pest risk should carry a recommendation")
	}
}

func TestEventsBranches(t *testing.T) {
	if e := Events(22, 4, "thunderstorm"); e.Rating != "poor" {
		t.Errorf("storm: %+v", e)
	}
	if e := Events(22, 4, "clear sky"); e.Rating != "excellent" || e.Score != 90 {
		t.Errorf("ideal: %+v", e)
	}
	// Wind disqualifies the excellent band.
	if e := Events(22, 12, "clear sky"); e.Rating != "good" {
		t.Errorf("windy: %+v", e)
	}
	if e := Events(34, 4, "clear sky"); e.Rating != "fair" {
		t.Errorf("heat: %+v", e)
	}
}

func TestEnergyBranches(t *testing.T) {
	if e := Energy(31); e.Rating != "high" {
		t.Errorf("cooling demand: %+v", e)
	}
	if e := Energy(5); e.Rating != "high" {
		t.Errorf("heating demand: %+v", e)
	}
	if e := Energy(20); e.Rating != "normal" || e.Score != 50 {
		t.Errorf("mild: %+v", e)
	}
}

func TestUnitsNormalizedBeforeScoring(t *testing.T) {
	metric := snap(25, 50, 4, "clear sky")

	imperial := metric
	imperial.Temperature = 77 // 25C
	imperial.WindSpeed = 8.9  // ~4 m/s
	imperial.Units = model.UnitsImperial

	standard := metric
	standard.Temperature = 298.15
	standard.Units = model.UnitsStandard

	m, i, s := Derive(metric), Derive(imperial), Derive(standard)
	if m.WeatherScore != i.WeatherScore || m.WeatherScore != s.WeatherScore {
		t.Errorf("scores diverge across unit systems: %d / %d / %d", m.WeatherScore, i.WeatherScore, s.WeatherScore)
	}
	if m.Retail.Rating != i.Retail.Rating {
		t.Errorf("retail rating diverges: %s vs %s", m.Retail.Rating, i.Retail.Rating)
	}
}
