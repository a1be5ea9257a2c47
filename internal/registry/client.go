package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/autolinkhq/autolink-backend/pkg/config"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

// Client wraps the NHTSA vPIC vehicle API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a vPIC client from config. BaseURL is overridable for tests.
func NewClient(cfg config.RegistryConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("registry base url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("registry timeout must be positive")
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// vPIC serves inconsistent key casing across endpoints, so each candidate key
// is tried in order.
type rawResult struct {
	MakeID    *int64 `json:"MakeId"`
	MakeIDAlt *int64 `json:"Make_ID"`
	MakeName  string `json:"MakeName"`
	MakeAlt   string `json:"Make_Name"`
	ModelID   *int64 `json:"ModelId"`
	ModelAlt  *int64 `json:"Model_ID"`
	ModelName string `json:"ModelName"`
	ModelNm   string `json:"Model_Name"`
}

type vpicResponse struct {
	Count   int         `json:"Count"`
	Message string      `json:"Message"`
	Results []rawResult `json:"Results"`
}

func (r rawResult) makeID() int64 {
	if r.MakeID != nil {
		return *r.MakeID
	}
	if r.MakeIDAlt != nil {
		return *r.MakeIDAlt
	}
	return 0
}

func (r rawResult) makeName() string {
	if r.MakeName != "" {
		return r.MakeName
	}
	return r.MakeAlt
}

func (r rawResult) modelID() int64 {
	if r.ModelID != nil {
		return *r.ModelID
	}
	if r.ModelAlt != nil {
		return *r.ModelAlt
	}
	return 0
}

func (r rawResult) modelName() string {
	if r.ModelName != "" {
		return r.ModelName
	}
	return r.ModelNm
}

// Makes lists car manufacturers known to the registry.
//
// vPIC does not filter makes by model year, so the caller's year only scopes
// the subsequent model lookup.
func (c *Client) Makes(ctx context.Context) ([]Make, error) {
	url := fmt.Sprintf("%s/GetMakesForVehicleType/car?format=json", c.baseURL)

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(resp.Results))
	makes := make([]Make, 0, len(resp.Results))
	for _, r := range resp.Results {
		id := r.makeID()
		name := strings.TrimSpace(r.makeName())
		if id <= 0 || name == "" || seen[id] {
			continue
		}
		seen[id] = true
		makes = append(makes, Make{ID: id, Name: name})
	}

	sort.Slice(makes, func(i, j int) bool { return makes[i].Name < makes[j].Name })
	return makes, nil
}

// Models lists the models a make produced for the given model year.
func (c *Client) Models(ctx context.Context, makeID int64, year int) ([]Model, error) {
	url := fmt.Sprintf("%s/GetModelsForMakeIdYear/makeId/%d/modelyear/%d?format=json", c.baseURL, makeID, year)

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(resp.Results))
	models := make([]Model, 0, len(resp.Results))
	for _, r := range resp.Results {
		id := r.modelID()
		name := strings.TrimSpace(r.modelName())
		if id <= 0 || name == "" || seen[id] {
			continue
		}
		seen[id] = true
		models = append(models, Model{ID: id, Name: name})
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func (c *Client) get(ctx context.Context, url string) (*vpicResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build registry request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "registry request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("registry returned %s", resp.Status))
	}

	var parsed vpicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode registry response")
	}
	return &parsed, nil
}
