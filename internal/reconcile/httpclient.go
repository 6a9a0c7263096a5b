package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

// HTTPClient talks to the job sheet API. It satisfies Client, so an
// edit session can run against a live server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: baseURL, client: client}
}

func (c *HTTPClient) FetchJobSheet(ctx context.Context, id int64) (store.JobSheet, error) {
	url := fmt.Sprintf("%s/api/jobsheet/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return store.JobSheet{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return store.JobSheet{}, fmt.Errorf("fetch job sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return store.JobSheet{}, apiError(resp)
	}
	var sheet store.JobSheet
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return store.JobSheet{}, fmt.Errorf("decode job sheet: %w", err)
	}
	return sheet, nil
}

func (c *HTTPClient) SubmitFinal(ctx context.Context, id int64, fields store.FinalizeFields) error {
	payload := struct {
		JobID int64 `json:"jobId"`
		store.FinalizeFields
	}{JobID: id, FinalizeFields: fields}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := c.baseURL + "/api/pm/approve-and-update"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit job sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", body.Code, body.Error)
}
