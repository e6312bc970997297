// Package client talks to the http API of `hookrun serve`.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raphi011/hookrun/internal/model"
)

type Run = model.RunRecord
type TestRecord = model.TestRecord

type Client struct {
	http *http.Client
	host string
}

type RequestError struct {
	ResponseCode int
}

func (e RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.ResponseCode)
}

func New(host string, c *http.Client) Client {
	return Client{http: c, host: host}
}

// StartRun runs all modules of the server and waits for the result.
func (c Client) StartRun(ctx context.Context) (Run, error) {
	req, err := http.NewRequest(http.MethodPost, c.url("/runs"), nil)
	if err != nil {
		return Run{}, err
	}

	var run Run

	if err = c.do(ctx, req, &run); err != nil {
		return Run{}, err
	}

	return run, nil
}

func (c Client) GetRun(ctx context.Context, runID string) (Run, error) {
	req, err := http.NewRequest(http.MethodGet, c.url("/runs/%s", runID), nil)
	if err != nil {
		return Run{}, err
	}

	var run Run

	if err = c.do(ctx, req, &run); err != nil {
		return Run{}, err
	}

	return run, nil
}

// ListRuns returns the stored runs, newest first. Test records are not
// included.
func (c Client) ListRuns(ctx context.Context) ([]Run, error) {
	req, err := http.NewRequest(http.MethodGet, c.url("/runs"), nil)
	if err != nil {
		return nil, err
	}

	runs := []Run{}

	if err = c.do(ctx, req, &runs); err != nil {
		return nil, err
	}

	return runs, nil
}

func (c Client) url(path string, args ...any) string {
	return fmt.Sprintf(c.host+path, args...)
}

func (c Client) do(ctx context.Context, req *http.Request, body any) error {
	req = req.WithContext(ctx)
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return RequestError{res.StatusCode}
	}

	if body != nil {
		d := json.NewDecoder(res.Body)

		if err = d.Decode(body); err != nil {
			return err
		}
	}

	return nil
}
