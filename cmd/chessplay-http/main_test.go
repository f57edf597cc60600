package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corvid-labs/chessplay/internal/engine"
)

func TestHandleBestMoveBadFENReturns400(t *testing.T) {
	eng := engine.NewEngine(engine.Beginner)
	handler := handleBestMove(eng)

	body, _ := json.Marshal(bestMoveRequest{FEN: "not a fen"})
	req := httptest.NewRequest(http.MethodPost, "/bestmove", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleBestMoveMissingFENReturns400(t *testing.T) {
	eng := engine.NewEngine(engine.Beginner)
	handler := handleBestMove(eng)

	req := httptest.NewRequest(http.MethodPost, "/bestmove", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleBestMoveValidFEN(t *testing.T) {
	eng := engine.NewEngine(engine.Beginner)
	handler := handleBestMove(eng)

	body, _ := json.Marshal(bestMoveRequest{FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"})
	req := httptest.NewRequest(http.MethodPost, "/bestmove", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp bestMoveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.From == "" || resp.To == "" {
		t.Fatal("expected a non-empty move in response")
	}
}

func TestHandleHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEngineNilLoggerNoPanic(t *testing.T) {
	eng := engine.NewEngine(engine.Beginner)
	eng.SetLogger(nil)

	if _, err := eng.BestMove("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"); err != nil {
		t.Fatalf("BestMove error with nil logger: %v", err)
	}
}
