package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asheridan/loom/internal/engine"
	"github.com/asheridan/loom/pkg/models"
)

// fakeEngine is a scripted Orchestrator.
type fakeEngine struct {
	submitted  *models.Request
	submitErr  error
	snapshot   *models.RunSnapshot
	statusErr  error
	cancelErr  error
	cancelled  []string
	nextRunID  string
}

func (f *fakeEngine) Submit(ctx context.Context, req *models.Request) (string, error) {
	f.submitted = req
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.nextRunID, nil
}

func (f *fakeEngine) GetStatus(runID string) (*models.RunSnapshot, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.snapshot, nil
}

func (f *fakeEngine) Cancel(runID string) error {
	f.cancelled = append(f.cancelled, runID)
	return f.cancelErr
}

func TestSubmitRun(t *testing.T) {
	fake := &fakeEngine{nextRunID: "run-1"}
	srv := httptest.NewServer(NewHandler(fake).Router())
	defer srv.Close()

	body := `{"description": "build the report", "max_parallel": 2}`
	resp, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var out struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.RunID != "run-1" {
		t.Errorf("unexpected run id: %s", out.RunID)
	}
	if fake.submitted.Constraints.MaxParallel != 2 {
		t.Errorf("constraints not forwarded: %+v", fake.submitted.Constraints)
	}
}

func TestSubmitRunInvalidRequest(t *testing.T) {
	fake := &fakeEngine{submitErr: models.ErrInvalidRequest}
	srv := httptest.NewServer(NewHandler(fake).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader(`{"description": ""}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid request, got %d", resp.StatusCode)
	}
}

func TestSubmitRunMalformedBody(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&fakeEngine{}).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestGetRun(t *testing.T) {
	fake := &fakeEngine{snapshot: &models.RunSnapshot{RunID: "run-1", Verdict: models.VerdictSucceeded}}
	srv := httptest.NewServer(NewHandler(fake).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap models.RunSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Verdict != models.VerdictSucceeded {
		t.Errorf("unexpected verdict: %s", snap.Verdict)
	}
}

func TestGetRunNotFound(t *testing.T) {
	fake := &fakeEngine{statusErr: engine.ErrRunNotFound}
	srv := httptest.NewServer(NewHandler(fake).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/missing")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelRun(t *testing.T) {
	fake := &fakeEngine{}
	srv := httptest.NewServer(NewHandler(fake).Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/runs/run-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != "run-1" {
		t.Errorf("cancel not forwarded: %v", fake.cancelled)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&fakeEngine{}).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
