package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"speaking-assessment-service/internal/domain"
)

func TestResultsEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	post := func(body string) int {
		resp, err := http.Post(server.URL+"/results", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"sessionId":"s1","studentResult":{"studentName":"A","score":12}}`); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := post(`{"sessionId":"s1","studentResult":{"studentName":"B","score":20}}`); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := post(`{"sessionId":"","studentResult":{}}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty submission, got %d", code)
	}
	if code := post(`not json`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", code)
	}

	resp, err := http.Get(server.URL + "/results?sessionId=s1")
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	defer resp.Body.Close()
	var results []domain.StudentResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 || results[0].StudentName != "A" || results[1].Score != 20 {
		t.Fatalf("unexpected results %+v", results)
	}

	rank, err := http.Get(server.URL + "/ranking?sessionId=s1&name=A")
	if err != nil {
		t.Fatalf("get ranking: %v", err)
	}
	rank.Body.Close()
	if rank.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before deadline, got %d", rank.StatusCode)
	}
}
