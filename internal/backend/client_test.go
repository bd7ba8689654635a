package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/screenwise/screentime-service/internal/challenge"
)

func TestClientGenerateChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/challenges/generate" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var body struct {
			Difficulty string `json:"difficulty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Difficulty != "hard" {
			t.Fatalf("expected hard, got %q", body.Difficulty)
		}

		json.NewEncoder(w).Encode(challenge.Challenge{
			ID:         "remote-1",
			Question:   "23 × 18 = ?",
			Answer:     414,
			Difficulty: challenge.DifficultyHard,
			TimeReward: 12,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.GenerateChallenge(context.Background(), challenge.DifficultyHard, nil)
	if err != nil {
		t.Fatalf("GenerateChallenge returned error: %v", err)
	}
	if got.ID != "remote-1" || got.TimeReward != 12 {
		t.Fatalf("unexpected challenge: %+v", got)
	}
}

func TestClientGenerateChallenge_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GenerateChallenge(context.Background(), challenge.DifficultyEasy, nil)
	if !errors.Is(err, challenge.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestClientGenerateChallenge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.GenerateChallenge(context.Background(), challenge.DifficultyEasy, nil); !errors.Is(err, challenge.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestClientSubmitChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/challenges/ch-9/submit" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SubmitResponse{Correct: true, TimeReward: 8})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.SubmitChallenge(context.Background(), "ch-9", 84)
	if err != nil {
		t.Fatalf("SubmitChallenge returned error: %v", err)
	}
	if !resp.Correct || resp.TimeReward != 8 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUsageSource_CachesOneFetchPerPass(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/usage/realtime" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fetches++
		json.NewEncoder(w).Encode([]RealtimeUsage{
			{PackageName: "com.instagram.android", TimeUsed: 14},
			{PackageName: "com.whatsapp", TimeUsed: 3},
		})
	}))
	defer srv.Close()

	source := NewUsageSource(NewClient(srv.URL), 0)

	first, err := source.Sample(context.Background(), "com.instagram.android")
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	second, err := source.Sample(context.Background(), "com.whatsapp")
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if first != 14 || second != 3 {
		t.Fatalf("unexpected samples: %d, %d", first, second)
	}
	if fetches != 1 {
		t.Fatalf("expected one realtime fetch for the pass, got %d", fetches)
	}

	if _, err := source.Sample(context.Background(), "com.unknown"); err == nil {
		t.Fatalf("expected an error for an untracked package")
	}
}
