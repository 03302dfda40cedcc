package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mfalcao/phantasma/internal/httpc"
)

// Day is one day of an IPMA city forecast.
type Day struct {
	TMin        float64
	TMax        float64
	PrecipProb  float64
	WeatherType int
}

// Forecaster fetches forecasts. The IPMA client implements it; tests
// script it.
type Forecaster interface {
	Daily(ctx context.Context, cityID int) ([]Day, error)
	Locations(ctx context.Context) (map[string]int, error)
}

// IPMA is a client for the Portuguese weather service's open data API.
type IPMA struct {
	base   string
	client *http.Client
}

var _ Forecaster = (*IPMA)(nil)

// NewIPMA creates a client for api.ipma.pt.
func NewIPMA() *IPMA {
	return &IPMA{
		base:   "https://api.ipma.pt/open-data",
		client: httpc.NewClient(10 * time.Second),
	}
}

// Daily returns the daily forecast for a city, index 0 being today.
func (c *IPMA) Daily(ctx context.Context, cityID int) ([]Day, error) {
	url := fmt.Sprintf("%s/forecast/meteorology/cities/daily/%d.json", c.base, cityID)

	var payload struct {
		Data []struct {
			TMin        string `json:"tMin"`
			TMax        string `json:"tMax"`
			PrecipProb  string `json:"precipitaProb"`
			WeatherType int    `json:"idWeatherType"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	days := make([]Day, 0, len(payload.Data))
	for _, d := range payload.Data {
		tMin, _ := strconv.ParseFloat(d.TMin, 64)
		tMax, _ := strconv.ParseFloat(d.TMax, 64)
		precip, _ := strconv.ParseFloat(d.PrecipProb, 64)
		days = append(days, Day{
			TMin:        tMin,
			TMax:        tMax,
			PrecipProb:  precip,
			WeatherType: d.WeatherType,
		})
	}
	return days, nil
}

// Locations maps normalized city names to IPMA global ids.
func (c *IPMA) Locations(ctx context.Context) (map[string]int, error) {
	var payload struct {
		Data []struct {
			Local    string `json:"local"`
			GlobalID int    `json:"globalIdLocal"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, c.base+"/distrits-islands.json", &payload); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(payload.Data))
	for _, loc := range payload.Data {
		out[normalizeCity(loc.Local)] = loc.GlobalID
	}
	return out, nil
}

func (c *IPMA) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("weather: ipma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather: ipma returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("weather: decode response: %w", err)
	}
	return nil
}

// Spoken descriptions for the IPMA weather type codes the forecasts
// actually use.
var weatherTypes = map[int]string{
	1: "céu limpo",
	2: "céu pouco nublado",
	3: "céu parcialmente nublado",
	4: "céu muito nublado",
	5: "céu nublado",
	6: "chuva",
	7: "aguaceiros",
	9: "chuva",
}

func describeWeatherType(id int) string {
	if desc, ok := weatherTypes[id]; ok {
		return desc
	}
	return "estado incerto"
}
