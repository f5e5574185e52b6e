package coordinator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldport/fieldsync/internal/models"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, strings.TrimPrefix(srv.URL, "http://")
}

func dialTestClient(t *testing.T, addr string) (*Client, chan models.Message) {
	t.Helper()
	received := make(chan models.Message, 16)
	c, err := Dial(addr, func(m models.Message) { received <- m })
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, received
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d connected contexts, have %d", want, hub.ClientCount())
}

func TestHubRelaysEnvelopesBetweenContexts(t *testing.T) {
	hub, addr := newTestHub(t)

	sender, _ := dialTestClient(t, addr)
	_, received := dialTestClient(t, addr)
	waitForClients(t, hub, 2)

	sender.Send(models.NewMessage(models.MsgTriggerPhotoSync, nil))

	select {
	case msg := <-received:
		if msg.Type != models.MsgTriggerPhotoSync {
			t.Fatalf("expected %s, got %s", models.MsgTriggerPhotoSync, msg.Type)
		}
		if msg.Timestamp == 0 {
			t.Fatal("relayed envelope should keep its timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay never arrived")
	}
}

func TestHubBroadcastReachesEveryContext(t *testing.T) {
	hub, addr := newTestHub(t)

	_, recvA := dialTestClient(t, addr)
	_, recvB := dialTestClient(t, addr)
	waitForClients(t, hub, 2)

	hub.Broadcast(models.PhotoSyncComplete(7))

	for _, ch := range []chan models.Message{recvA, recvB} {
		select {
		case msg := <-ch:
			if msg.Type != models.MsgPhotoSyncComplete {
				t.Fatalf("expected completion, got %s", msg.Type)
			}
			if msg.ProjectID() != 7 {
				t.Fatalf("expected project 7, got %d", msg.ProjectID())
			}
		case <-time.After(2 * time.Second):
			t.Fatal("broadcast never arrived")
		}
	}
}

func TestHubDropsMalformedEnvelopes(t *testing.T) {
	hub, addr := newTestHub(t)

	raw, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial raw: %v", err)
	}
	defer raw.Close()

	_, received := dialTestClient(t, addr)
	waitForClients(t, hub, 2)

	if err := raw.WriteMessage(websocket.TextMessage, []byte("not an envelope")); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	valid, _ := models.NewMessage(models.MsgWorkerUpdated, nil).Encode()
	if err := raw.WriteMessage(websocket.TextMessage, valid); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Type != models.MsgWorkerUpdated {
			t.Fatalf("malformed envelope leaked through as %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid envelope after malformed one never arrived")
	}
}

func TestClientCountTracksDisconnects(t *testing.T) {
	hub, addr := newTestHub(t)

	c, _ := dialTestClient(t, addr)
	waitForClients(t, hub, 1)

	c.Close()
	waitForClients(t, hub, 0)
}

func TestClientDoneSignalsClose(t *testing.T) {
	_, addr := newTestHub(t)

	c, _ := dialTestClient(t, addr)
	c.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should be closed after Close")
	}
}
