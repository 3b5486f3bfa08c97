package weather

import (
	"time"

	"github.com/tphakala/birdweather-sync/internal/datastore"
	"github.com/tphakala/birdweather-sync/internal/errors"
)

// Conversion factors to the imperial units stored for conditions.
const (
	celsiusToFahrenheitScale  = 9.0 / 5.0
	celsiusToFahrenheitOffset = 32.0
	kmhToMph                  = 0.621371
	pascalPerHectopascal      = 100.0
	metersToMiles             = 0.000621371
	mmToInches                = 0.0393701
)

// CelsiusToFahrenheit converts a temperature, keeping nil as nil.
func CelsiusToFahrenheit(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c*celsiusToFahrenheitScale + celsiusToFahrenheitOffset
	return &v
}

// KmhToMph converts a speed, keeping nil as nil.
func KmhToMph(kmh *float64) *float64 {
	return scale(kmh, kmhToMph)
}

// PascalToHPa converts a pressure, keeping nil as nil.
func PascalToHPa(pa *float64) *float64 {
	if pa == nil {
		return nil
	}
	v := *pa / pascalPerHectopascal
	return &v
}

// MetersToMiles converts a distance, keeping nil as nil.
func MetersToMiles(m *float64) *float64 {
	return scale(m, metersToMiles)
}

// MMToInches converts a precipitation depth, keeping nil as nil.
func MMToInches(mm *float64) *float64 {
	return scale(mm, mmToInches)
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

// FeelsLike picks wind chill, then heat index, then the temperature.
// All inputs are already in Fahrenheit.
func FeelsLike(windChill, heatIndex, temperature *float64) *float64 {
	switch {
	case windChill != nil:
		return windChill
	case heatIndex != nil:
		return heatIndex
	default:
		return temperature
	}
}

func convertObservation(resp *observationResponse) (*datastore.CurrentConditions, error) {
	p := resp.Properties
	if p.Timestamp == nil || *p.Timestamp == "" {
		return nil, errors.NewStd("observation has no timestamp")
	}
	observedAt, err := parseTime(*p.Timestamp)
	if err != nil {
		return nil, err
	}

	temp := CelsiusToFahrenheit(p.Temperature.Value)
	c := &datastore.CurrentConditions{
		ObservedAt:       observedAt,
		TemperatureF:     temp,
		DewpointF:        CelsiusToFahrenheit(p.Dewpoint.Value),
		FeelsLikeF:       FeelsLike(CelsiusToFahrenheit(p.WindChill.Value), CelsiusToFahrenheit(p.HeatIndex.Value), temp),
		HumidityPct:      p.RelativeHumidity.Value,
		WindSpeedMph:     KmhToMph(p.WindSpeed.Value),
		WindDirectionDeg: p.WindDirection.Value,
		WindGustMph:      KmhToMph(p.WindGust.Value),
		PressureHPa:      PascalToHPa(p.BarometricPressure.Value),
		VisibilityMi:     MetersToMiles(p.Visibility.Value),
		Precip1hIn:       MMToInches(p.PrecipitationLastHour.Value),
		Precip3hIn:       MMToInches(p.PrecipitationLast3Hours.Value),
		Precip6hIn:       MMToInches(p.PrecipitationLast6Hours.Value),
		Description:      p.TextDescription,
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	return c, nil
}

// convertForecast maps forecast periods, returning how many were skipped
// for missing or unparsable times.
func convertForecast(resp *forecastResponse) ([]datastore.Forecast, int) {
	periods := make([]datastore.Forecast, 0, len(resp.Properties.Periods))
	skipped := 0
	for _, p := range resp.Properties.Periods {
		if p.StartTime == nil || p.EndTime == nil {
			skipped++
			continue
		}
		start, err := parseTime(*p.StartTime)
		if err != nil {
			skipped++
			continue
		}
		end, err := parseTime(*p.EndTime)
		if err != nil {
			skipped++
			continue
		}

		f := datastore.Forecast{
			Number:           p.Number,
			Name:             p.Name,
			StartTime:        start,
			EndTime:          end,
			IsDaytime:        p.IsDaytime == nil || *p.IsDaytime,
			TemperatureF:     p.Temperature, // NWS forecasts are already Fahrenheit
			WindSpeed:        p.WindSpeed,
			WindDirection:    p.WindDirection,
			ShortForecast:    p.ShortForecast,
			DetailedForecast: p.DetailedForecast,
			Icon:             p.Icon,
		}
		if p.ProbabilityOfPrecipitation != nil {
			f.PrecipitationProbability = p.ProbabilityOfPrecipitation.Value
		}
		periods = append(periods, f)
	}
	return periods, skipped
}

// parseTime parses an ISO 8601 timestamp into UTC.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
