package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rastow/panerun/internal/track"
)

// client talks to a running `panerun serve` instance. The serve process
// owns the live registry, so cross-process poll/wait/cancel go through
// its JSON API.
type client struct {
	base string
	http *http.Client
}

func newClient(cmd *cobra.Command) *client {
	server, _ := cmd.Flags().GetString("server")
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach %s (is panerun serve running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("server: %s", env.Error.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *client) execution(id string) (track.Execution, error) {
	var rec track.Execution
	err := c.do(http.MethodGet, "/v1/executions/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

func (c *client) cancel(id string) (track.Execution, error) {
	var rec track.Execution
	err := c.do(http.MethodPost, "/v1/executions/"+url.PathEscape(id)+"/cancel", nil, &rec)
	return rec, err
}

func (c *client) list(active bool) ([]track.Execution, error) {
	path := "/v1/executions"
	if active {
		path += "?active=true"
	}
	var resp struct {
		Executions []track.Execution `json:"executions"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Executions, err
}

func (c *client) cleanup(maxAge time.Duration) (int, error) {
	path := "/v1/executions"
	if maxAge > 0 {
		path += "?max_age=" + url.QueryEscape(maxAge.String())
	}
	var resp struct {
		Evicted int `json:"evicted"`
	}
	err := c.do(http.MethodDelete, path, nil, &resp)
	return resp.Evicted, err
}
