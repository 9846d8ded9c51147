package irrigation_controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
)

// DefaultOWMBaseURL is the OpenWeather 2.5 API root.
const DefaultOWMBaseURL = "https://api.openweathermap.org/data/2.5"

type owmCurrent struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
}

// OWMClient reads current conditions from OpenWeather. Rainfall is not
// forecast; it is reported as 0.
type OWMClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

var _ WeatherSource = (*OWMClient)(nil)

func NewOWMClient(key, baseURL string, timeout time.Duration) *OWMClient {
	if baseURL == "" {
		baseURL = DefaultOWMBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OWMClient{
		apiKey:  key,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *OWMClient) Current(ctx context.Context, location string) (entities.WeatherObservation, error) {
	if c.apiKey == "" {
		return entities.WeatherObservation{}, eris.New("owm: missing api key")
	}
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return entities.WeatherObservation{}, eris.Wrap(err, "owm: build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return entities.WeatherObservation{}, eris.Wrap(err, "owm: request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return entities.WeatherObservation{}, eris.Errorf("owm status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out owmCurrent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return entities.WeatherObservation{}, eris.Wrap(err, "owm: decode")
	}
	if out.Main == nil || len(out.Weather) == 0 {
		return entities.WeatherObservation{}, eris.New("owm: incomplete response")
	}

	// Caser is stateful; one per call
	title := cases.Title(language.English)
	return entities.WeatherObservation{
		TemperatureC: out.Main.Temp,
		RainfallMM:   0,
		HumidityPct:  out.Main.Humidity,
		Description:  title.String(out.Weather[0].Description),
	}, nil
}
