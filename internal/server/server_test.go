package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"farmsavvy/internal/config"
	"farmsavvy/internal/db"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/engine"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	rec := ledger.New(conn, zerolog.Nop())
	e := engine.New(conn, cfg, rec)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:     cfg.Auth.JWTSecret,
			TokenTTLHours: cfg.Auth.TokenTTLHours,
			Logger:        zerolog.Nop(),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func register(t *testing.T, srv *testServer, name, email, role string) TokenResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/register", map[string]any{
		"name": name, "email": email, "password": "secret1", "role": role,
	}, "")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, res.StatusCode, string(data))
	}
	var tr TokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return tr
}

func TestAuthorizationScenario(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	owner := register(t, srv, "Olive", "olive@farm.test", "manager")
	manager := register(t, srv, "Mandy", "mandy@farm.test", "manager")
	worker := register(t, srv, "Wes", "wes@farm.test", "worker")
	admin := register(t, srv, "Ada", "ada@farm.test", "admin")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/farms", map[string]any{
		"name": "Green Acres", "address": "1 Pasture Ln",
	}, owner.Token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create farm: %d %s", res.StatusCode, string(data))
	}
	var farm domain.Farm
	_ = json.Unmarshal(data, &farm)

	for _, m := range []struct{ id, role string }{
		{manager.User.ID, "manager"},
		{worker.User.ID, "worker"},
	} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/farms/"+farm.ID+"/members", map[string]any{
			"user_id": m.id, "role": m.role,
		}, owner.Token)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("add member: %d %s", res.StatusCode, string(data))
		}
	}

	// Owner creates an animal.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/animals", map[string]any{
		"farm_id": farm.ID, "tag_number": "TAG-100", "type": "cattle", "breed": "Angus",
		"gender": "female", "date_of_birth": "2023-03-01T00:00:00Z", "weight_kg": 310,
	}, owner.Token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create animal: %d %s", res.StatusCode, string(data))
	}
	var animal domain.Animal
	_ = json.Unmarshal(data, &animal)

	// Worker may view but not delete.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/animals/"+animal.ID, nil, worker.Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("worker view: %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/animals/"+animal.ID, nil, worker.Token)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("worker delete: want 403, got %d %s", res.StatusCode, string(data))
	}

	// Manager updates the weight, which lands in the ledger.
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/animals/"+animal.ID, map[string]any{
		"weight_kg": 315.5,
	}, manager.Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("manager update: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/farms/"+farm.ID+"/activities", nil, manager.Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activities: %d %s", res.StatusCode, string(data))
	}
	var page ActivityPageResponse
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal activities: %v", err)
	}
	var sawUpdate bool
	for _, a := range page.Items {
		if a.Type == "animal_updated" && a.EntityID == animal.ID {
			sawUpdate = true
			if w, ok := a.Metadata["weight"].(float64); !ok || w != 315.5 {
				t.Fatalf("metadata weight = %v", a.Metadata["weight"])
			}
		}
	}
	if !sawUpdate {
		t.Fatal("expected animal_updated activity")
	}

	// Admin deletes without farm membership.
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/animals/"+animal.ID, nil, admin.Token)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("admin delete: %d %s", res.StatusCode, string(data))
	}
}

func TestNotFoundBeatsForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	worker := register(t, srv, "Wes", "wes@farm.test", "worker")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/animals", map[string]any{
		"farm_id": "no-such-farm", "tag_number": "TAG-404", "type": "pig", "breed": "x",
		"gender": "male", "date_of_birth": "2024-01-01T00:00:00Z",
	}, worker.Token)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 for missing farm, got %d %s", res.StatusCode, string(data))
	}
}

func TestDuplicateTagIsBadRequest(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	owner := register(t, srv, "Olive", "olive@farm.test", "manager")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/farms", map[string]any{
		"name": "Dup Farm", "address": "2 Lane",
	}, owner.Token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create farm: %d %s", res.StatusCode, string(data))
	}
	var farm domain.Farm
	_ = json.Unmarshal(data, &farm)

	body := map[string]any{
		"farm_id": farm.ID, "tag_number": "TAG-DUP", "type": "sheep", "breed": "Merino",
		"gender": "female", "date_of_birth": "2024-02-01T00:00:00Z",
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/animals", body, owner.Token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first insert: %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/animals", body, owner.Token)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for duplicate tag, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "duplicate_value" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/farms", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open: %d", res.StatusCode)
	}
}

func TestLoginFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	register(t, srv, "Olive", "olive@farm.test", "manager")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email": "olive@farm.test", "password": "secret1",
	}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", res.StatusCode, string(data))
	}
	var tr TokenResponse
	_ = json.Unmarshal(data, &tr)
	if tr.Token == "" {
		t.Fatal("expected token")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/me", nil, tr.Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var me domain.User
	_ = json.Unmarshal(data, &me)
	if me.Email != "olive@farm.test" {
		t.Fatalf("me email = %s", me.Email)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email": "olive@farm.test", "password": "wrong",
	}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: want 401, got %d %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	owner := register(t, srv, "Olive", "olive@farm.test", "manager")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/apikeys", map[string]any{
		"name": "automation",
	}, owner.Token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var created APIKeyCreatedResponse
	_ = json.Unmarshal(data, &created)
	if created.Key == "" {
		t.Fatal("expected raw key")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/auth/me", nil)
	req.Header.Set("X-Api-Key", created.Key)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("api key request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: %d", resp.StatusCode)
	}
}
