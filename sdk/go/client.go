package farmsavvysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal FarmSavvy HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents the API user model (partial).
type User struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Farms  []string `json:"farms,omitempty"`
	Active bool     `json:"active"`
}

// Farm represents the API farm model (partial).
type Farm struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	OwnerID  string   `json:"owner_id"`
	Managers []string `json:"managers"`
	Workers  []string `json:"workers"`
	Active   bool     `json:"active"`
}

// Animal represents the API animal model (partial).
type Animal struct {
	ID        string  `json:"id"`
	FarmID    string  `json:"farm_id"`
	TagNumber string  `json:"tag_number"`
	Name      string  `json:"name,omitempty"`
	Type      string  `json:"type"`
	Breed     string  `json:"breed"`
	WeightKg  float64 `json:"weight_kg"`
	Status    string  `json:"status"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string   `json:"id"`
	FarmID     string   `json:"farm_id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Priority   string   `json:"priority"`
	Status     string   `json:"status"`
	AssignedTo []string `json:"assigned_to"`
	DueDate    string   `json:"due_date"`
}

// Activity represents one ledger entry.
type Activity struct {
	Seq         int64          `json:"seq"`
	Type        string         `json:"type"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	EntityName  string         `json:"entity_name,omitempty"`
	ActorID     string         `json:"actor_id"`
	FarmID      string         `json:"farm_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// ActivityPage wraps activity listings with totals.
type ActivityPage struct {
	Items  []Activity `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates and stores the bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "v1/auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "v1/auth/me", nil, &resp)
	return resp, err
}

// CreateFarm creates a farm owned by the caller.
func (c *Client) CreateFarm(ctx context.Context, name, address string) (Farm, error) {
	body := map[string]any{
		"name":    name,
		"address": address,
	}
	var resp Farm
	err := c.do(ctx, http.MethodPost, "v1/farms", body, &resp)
	return resp, err
}

// Farms lists farms visible to the caller.
func (c *Client) Farms(ctx context.Context) ([]Farm, error) {
	var resp []Farm
	err := c.do(ctx, http.MethodGet, "v1/farms", nil, &resp)
	return resp, err
}

// AddAnimal registers an animal on a farm.
func (c *Client) AddAnimal(ctx context.Context, farmID, tagNumber, animalType string, extra map[string]any) (Animal, error) {
	body := map[string]any{
		"farm_id":    farmID,
		"tag_number": tagNumber,
		"type":       animalType,
	}
	for k, v := range extra {
		body[k] = v
	}
	var resp Animal
	err := c.do(ctx, http.MethodPost, "v1/animals", body, &resp)
	return resp, err
}

// Animals lists a farm's animals.
func (c *Client) Animals(ctx context.Context, farmID string) ([]Animal, error) {
	var resp []Animal
	endpoint := fmt.Sprintf("v1/animals?farm_id=%s", url.QueryEscape(farmID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateTask creates a task on a farm.
func (c *Client) CreateTask(ctx context.Context, farmID, title, dueDate string, assignedTo []string) (Task, error) {
	body := map[string]any{
		"farm_id":     farmID,
		"title":       title,
		"due_date":    dueDate,
		"assigned_to": assignedTo,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v1/tasks", body, &resp)
	return resp, err
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v1/tasks/%s/complete", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, nil, &resp)
	return resp, err
}

// Activities returns a page of a farm's activity ledger, newest first.
func (c *Client) Activities(ctx context.Context, farmID string, limit, offset int) (ActivityPage, error) {
	endpoint := fmt.Sprintf("v1/farms/%s/activities", url.PathEscape(farmID))
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		params.Set("offset", fmt.Sprint(offset))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp ActivityPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ActivityStats returns activity counts by type over a trailing window.
func (c *Client) ActivityStats(ctx context.Context, farmID string, days int) (map[string]int, error) {
	endpoint := fmt.Sprintf("v1/farms/%s/activities/stats", url.PathEscape(farmID))
	if days > 0 {
		endpoint = fmt.Sprintf("%s?days=%d", endpoint, days)
	}
	var resp map[string]int
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
