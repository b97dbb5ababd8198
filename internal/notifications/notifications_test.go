package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/complynav/compliance-navigator/pkg/config"
)

func TestNew_NoChannelsConfigured_IsNoop(t *testing.T) {
	n := New(config.NotifyConfig{}, zaptest.NewLogger(t))
	if len(n.channels) != 0 {
		t.Fatalf("expected zero channels, got %d", len(n.channels))
	}
	// Must not panic or block with no channels and a background context.
	n.NotifyPacketReady(context.Background(), PacketReadyEvent{RunID: "r1"})
}

func TestNotifyPacketReady_SendsToSlackWebhook(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{SlackWebhookURL: srv.URL}, zaptest.NewLogger(t))
	n.NotifyPacketReady(context.Background(), PacketReadyEvent{
		RunID:       "20260730T000000.000000000-abcd1234",
		RepoPath:    "/repos/demo",
		Framework:   "soc2",
		CoveragePct: 42.5,
		TopFindings: []FindingSummary{{Title: "hardcoded key", Severity: "high", Control: "CC6.1", File: "config.env"}},
	})

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one webhook hit, got %d", hits)
	}
}

func TestNotifyPacketReady_SwallowsChannelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{SlackWebhookURL: srv.URL}, zaptest.NewLogger(t))
	// Must not panic, block, or otherwise surface the 500 to the caller.
	n.NotifyPacketReady(context.Background(), PacketReadyEvent{RunID: "r2"})
}
