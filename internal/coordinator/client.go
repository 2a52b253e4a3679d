package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sluicedata/sluice/internal/physical"
)

// HTTPClient submits jobs to a remote coordinator over its HTTP+JSON
// surface and polls the job status until it is terminal.
type HTTPClient struct {
	base string
	http *http.Client

	// PollInterval controls the status polling cadence.
	PollInterval time.Duration
}

// submitResponse is the coordinator's answer to a submission.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}

// statusResponse is one polled status report.
type statusResponse struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Dial verifies the coordinator endpoint answers and returns a client.
// endpoint is "host:port".
func Dial(ctx context.Context, endpoint string) (*HTTPClient, error) {
	c := &HTTPClient{
		base:         "http://" + endpoint,
		http:         &http.Client{},
		PollInterval: time.Second,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/ping", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coordinator at %s unreachable: %w", endpoint, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coordinator at %s answered %s to ping", endpoint, resp.Status)
	}
	return c, nil
}

// Launch submits the plan and blocks until the job reaches a terminal
// status. Coordinator-side retries are the coordinator's business; the
// client only observes the final state.
func (c *HTTPClient) Launch(ctx context.Context, jobName string, p *physical.Plan) (Status, error) {
	jobReq, err := EncodeRequest(jobName, p)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(jobReq)
	if err != nil {
		return "", fmt.Errorf("marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job %q: %w", jobName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit job %q: coordinator answered %s: %s", jobName, resp.Status, bytes.TrimSpace(body))
	}
	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if sub.Status.Terminal() {
		return sub.Status, nil
	}
	return c.wait(ctx, sub.JobID)
}

// wait polls the job status until terminal.
func (c *HTTPClient) wait(ctx context.Context, jobID string) (Status, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		st, jobErr, err := c.status(ctx, jobID)
		if err != nil {
			return "", err
		}
		if st.Terminal() {
			if st == StatusFailed && jobErr != "" {
				return st, fmt.Errorf("job %s failed: %s", jobID, jobErr)
			}
			return st, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) status(ctx context.Context, jobID string) (Status, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/jobs/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("poll job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("poll job %s: coordinator answered %s", jobID, resp.Status)
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return "", "", fmt.Errorf("decode status for job %s: %w", jobID, err)
	}
	return st.Status, st.Error, nil
}
