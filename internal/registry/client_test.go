package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autolinkhq/autolink-backend/pkg/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.RegistryConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestMakesNormalizesAndSorts(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GetMakesForVehicleType/car" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Fatalf("expected format=json, got %q", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Count": 5,
			"Results": [
				{"MakeId": 448, "MakeName": "TOYOTA"},
				{"MakeId": 440, "MakeName": "ASTON MARTIN"},
				{"MakeId": 0, "MakeName": "GHOST"},
				{"MakeId": 441, "MakeName": "  "},
				{"MakeId": 448, "MakeName": "TOYOTA"}
			]
		}`))
	}))

	makes, err := client.Makes(context.Background())
	if err != nil {
		t.Fatalf("makes: %v", err)
	}
	if len(makes) != 2 {
		t.Fatalf("expected 2 makes after filtering, got %d", len(makes))
	}
	if makes[0].Name != "ASTON MARTIN" || makes[1].Name != "TOYOTA" {
		t.Fatalf("expected alphabetical order, got %+v", makes)
	}
	if makes[1].ID != 448 {
		t.Fatalf("expected make id preserved, got %d", makes[1].ID)
	}
}

func TestModelsAcceptsUnderscoreKeys(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GetModelsForMakeIdYear/makeId/448/modelyear/2020" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Count": 3,
			"Results": [
				{"Make_ID": 448, "Make_Name": "TOYOTA", "Model_ID": 2208, "Model_Name": "Corolla"},
				{"Make_ID": 448, "Make_Name": "TOYOTA", "Model_ID": 2209, "Model_Name": "Camry"},
				{"Make_ID": 448, "Make_Name": "TOYOTA", "Model_ID": -1, "Model_Name": "Broken"}
			]
		}`))
	}))

	models, err := client.Models(context.Background(), 448, 2020)
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "Camry" || models[1].Name != "Corolla" {
		t.Fatalf("expected alphabetical order, got %+v", models)
	}
}

func TestClientSurfacesUpstreamFailure(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	if _, err := client.Makes(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(config.RegistryConfig{BaseURL: "", Timeout: time.Second}); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := NewClient(config.RegistryConfig{BaseURL: "http://example.com", Timeout: 0}); err == nil {
		t.Fatal("expected error for missing timeout")
	}
}
