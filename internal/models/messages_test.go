package models

import "testing"

func TestMessageWireRoundTrip(t *testing.T) {
	msg := PhotoSyncComplete(42)
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != MsgPhotoSyncComplete {
		t.Fatalf("type mismatch: %s", got.Type)
	}
	if got.Timestamp == 0 {
		t.Fatal("timestamp must survive the wire")
	}
	// JSON numbers come back as float64; ProjectID must cope.
	if got.ProjectID() != 42 {
		t.Fatalf("expected project 42, got %d", got.ProjectID())
	}
}

func TestProjectIDAbsent(t *testing.T) {
	msg := NewMessage(MsgTriggerPhotoSync, nil)
	if msg.ProjectID() != 0 {
		t.Fatalf("absent projectId should read as 0, got %d", msg.ProjectID())
	}
}

func TestOfflineReadyCounts(t *testing.T) {
	msg := OfflineReady(3, 4)
	if msg.Data["cachedChunks"] != 3 || msg.Data["totalChunks"] != 4 {
		t.Fatalf("unexpected payload: %v", msg.Data)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{{")); err == nil {
		t.Fatal("garbage must not decode")
	}
}
