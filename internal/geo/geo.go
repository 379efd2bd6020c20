// Package geo resuelve geolocalización best-effort de IPs para el sign-in
// log. Una falla acá nunca es fatal: el log se escribe igual, sin ubicación.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Location es la ubicación aproximada de una IP.
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

// Resolver resuelve la ubicación de una IP.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// Noop no resuelve nada (geolocalización deshabilitada).
type Noop struct{}

func (Noop) Resolve(ctx context.Context, ip string) (*Location, error) { return nil, nil }

// HTTPResolver consulta un servicio externo estilo ip-api (JSON por IP).
type HTTPResolver struct {
	BaseURL string // ej: https://ip-api.example.com/json
	Client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/"+ip, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: status %d", resp.StatusCode)
	}
	var loc Location
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&loc); err != nil {
		return nil, err
	}
	return &loc, nil
}
