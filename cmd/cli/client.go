package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// apiClient calls the api-service HTTP endpoints.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *apiClient) Health() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}

func (c *apiClient) CreateUser(username, email string) (models.UserCreatedResponse, error) {
	var resp models.UserCreatedResponse
	err := c.do(http.MethodPost, "/api/command/users", models.CreateUserRequest{Username: username, Email: email}, &resp)
	return resp, err
}

func (c *apiClient) UpdateEmail(id, email string) error {
	return c.do(http.MethodPut, "/api/command/users/"+url.PathEscape(id)+"/email", models.UpdateEmailRequest{NewEmail: email}, nil)
}

func (c *apiClient) Deactivate(id string) error {
	return c.do(http.MethodPost, "/api/command/users/"+url.PathEscape(id)+"/deactivate", nil, nil)
}

func (c *apiClient) GetUser(id string) (models.UserView, error) {
	var v models.UserView
	err := c.do(http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &v)
	return v, err
}

func (c *apiClient) GetUserByUsername(username string) (models.UserView, error) {
	var v models.UserView
	err := c.do(http.MethodGet, "/api/users/by-username/"+url.PathEscape(username), nil, &v)
	return v, err
}

func (c *apiClient) ListUsers(activeOnly bool) ([]models.UserView, error) {
	path := "/api/users"
	if activeOnly {
		path += "/active"
	}
	var views []models.UserView
	err := c.do(http.MethodGet, path, nil, &views)
	return views, err
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
