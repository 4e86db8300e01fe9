package upstream

import (
	"time"

	"github.com/wxgate/weather-gateway/internal/model"
)

// Provider wire shapes, decoded then normalized into model types.

type reading struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Pop     float64 `json:"pop"` // 0..1
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Rain struct {
		OneH   float64 `json:"1h"`
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
}

type currentPayload struct {
	reading
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
}

type listPayload struct {
	List []reading `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

func (r reading) toSnapshot(loc model.Location, units model.Units) model.WeatherSnapshot {
	ts := time.Unix(r.Dt, 0).UTC()
	if r.Dt == 0 {
		ts = time.Now().UTC()
	}

	desc := ""
	if len(r.Weather) > 0 {
		desc = r.Weather[0].Description
	}

	// The current-conditions payload carries observed rain volume rather
	// than a probability; treat any measured rain as certain.
	precip := r.Pop * 100
	if precip == 0 && (r.Rain.OneH > 0 || r.Rain.ThreeH > 0) {
		precip = 100
	}

	return model.WeatherSnapshot{
		Location:    loc,
		Timestamp:   ts,
		Temperature: r.Main.Temp,
		FeelsLike:   r.Main.FeelsLike,
		Humidity:    r.Main.Humidity,
		Pressure:    r.Main.Pressure,
		WindSpeed:   r.Wind.Speed,
		WindDeg:     r.Wind.Deg,
		PrecipProb:  precip,
		Description: desc,
		Units:       units,
	}
}

func (p currentPayload) snapshot(units model.Units) model.WeatherSnapshot {
	lat, lon := p.Coord.Lat, p.Coord.Lon
	loc := model.Location{City: p.Name, Country: p.Sys.Country, Lat: &lat, Lon: &lon}
	return p.reading.toSnapshot(loc, units)
}

func (p listPayload) forecast(units model.Units) model.Forecast {
	loc := model.Location{City: p.City.Name, Country: p.City.Country}
	out := make(model.Forecast, 0, len(p.List))
	for _, r := range p.List {
		out = append(out, r.toSnapshot(loc, units))
	}
	return out
}
