package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/server"
)

// apiClient talks to a running taxlens server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Completions can take a while; the server enforces its own bound.
		http: &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *apiClient) createSession() (*server.SessionInfo, error) {
	var info server.SessionInfo
	if err := c.do(http.MethodPost, "/api/v1/sessions", nil, http.StatusCreated, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *apiClient) setFocus(sessionID, ein string) (*models.Organization, error) {
	var org models.Organization
	if err := c.do(http.MethodPut, "/api/v1/sessions/"+sessionID+"/focus", server.FocusRequest{EIN: ein}, http.StatusOK, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *apiClient) ask(sessionID, question string) (*models.Answer, error) {
	var answer models.Answer
	if err := c.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/questions", models.Question{Text: question}, http.StatusOK, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func (c *apiClient) history(sessionID string) (*server.HistoryResponse, error) {
	var hist server.HistoryResponse
	if err := c.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/history", nil, http.StatusOK, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

func (c *apiClient) status() (*server.StatusResponse, error) {
	var st server.StatusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", nil, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) do(method, path string, in interface{}, want int, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
