package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/portal"
)

func TestStartSyncOfflineMakesNoNetworkCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	st := newTestStore(t)
	enqueueTestCapture(t, st, 1)

	r := NewRunner(st, portal.NewClient(srv.URL, 0), nil, 0)
	c := NewController(st, r, func() bool { return false })

	if c.StartSync(context.Background()) {
		t.Fatal("offline StartSync should report false")
	}
	if calls.Load() != 0 {
		t.Fatalf("offline sync must make zero network calls, made %d", calls.Load())
	}
	n, _ := st.Count(context.Background())
	if n != 1 {
		t.Fatalf("capture must stay queued while offline, got %d", n)
	}
}

func TestStartSyncSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := newTestStore(t)
	enqueueTestCapture(t, st, 1)

	r := NewRunner(st, portal.NewClient(srv.URL, 0), nil, 0)
	c := NewController(st, r, nil)

	done := make(chan bool, 1)
	go func() { done <- c.StartSync(context.Background()) }()

	<-entered
	if !c.Syncing() {
		t.Fatal("controller should report syncing while a pass is in flight")
	}
	if c.StartSync(context.Background()) {
		t.Fatal("concurrent StartSync should be rejected")
	}
	close(release)

	if !<-done {
		t.Fatal("first StartSync should have run the pass")
	}
	if c.Syncing() {
		t.Fatal("in-flight flag should clear after the pass")
	}
}

func TestStartSyncSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	st := newTestStore(t)
	enqueueTestCapture(t, st, 1)

	ctx := context.Background()
	if ok, err := st.AcquireLease(ctx, LeaseName, "other-context", time.Minute); err != nil || !ok {
		t.Fatalf("seed lease: ok=%v err=%v", ok, err)
	}

	r := NewRunner(st, portal.NewClient(srv.URL, 0), nil, 0)
	c := NewController(st, r, nil)
	c.UseLease(st, "this-context", time.Minute)

	if c.StartSync(ctx) {
		t.Fatal("pass should be skipped while another context holds the lease")
	}
	if calls.Load() != 0 {
		t.Fatal("skipped pass must not touch the network")
	}
}

func TestStartSyncReleasesLease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := newTestStore(t)
	ctx := context.Background()

	r := NewRunner(st, portal.NewClient(srv.URL, 0), nil, 0)
	c := NewController(st, r, nil)
	c.UseLease(st, "this-context", time.Minute)

	if !c.StartSync(ctx) {
		t.Fatal("pass should run on an empty queue")
	}

	ok, err := st.AcquireLease(ctx, LeaseName, "other-context", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lease should be free after the pass: ok=%v err=%v", ok, err)
	}
}

// countingLeaser always grants the lease and tallies calls.
type countingLeaser struct {
	acquires atomic.Int32
	releases atomic.Int32
}

func (l *countingLeaser) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	l.acquires.Add(1)
	return true, nil
}

func (l *countingLeaser) ReleaseLease(ctx context.Context, name, owner string) error {
	l.releases.Add(1)
	return nil
}

func TestStartSyncRenewsLeaseBetweenItems(t *testing.T) {
	f := newFakePortal(t)
	st := newTestStore(t)
	enqueueTestCapture(t, st, 1)
	enqueueTestCapture(t, st, 2)

	leaser := &countingLeaser{}
	r := NewRunner(st, portal.NewClient(f.srv.URL, 0), nil, 0)
	c := NewController(st, r, nil)
	c.UseLease(leaser, "this-context", time.Minute)

	if !c.StartSync(context.Background()) {
		t.Fatal("pass should run")
	}

	// The initial claim plus at least one renewal per drained item; a pass
	// longer than the TTL must not lose the lease between items.
	if got := leaser.acquires.Load(); got < 3 {
		t.Fatalf("expected renewals during the pass, got %d acquires", got)
	}
	if got := leaser.releases.Load(); got != 1 {
		t.Fatalf("expected one release, got %d", got)
	}
}

func TestStatusTransitionsObserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := newTestStore(t)
	r := NewRunner(st, portal.NewClient(srv.URL, 0), nil, 0)
	c := NewController(st, r, nil)

	var seen []Status
	unsubscribe := c.Subscribe(func(s Status) { seen = append(seen, s) })
	defer unsubscribe()

	c.StartSync(context.Background())

	if len(seen) < 2 || seen[0] != StatusSyncing || seen[len(seen)-1] != StatusIdle {
		t.Fatalf("expected syncing..idle transitions, got %v", seen)
	}
	if c.Status() != StatusIdle {
		t.Fatalf("controller should end idle, got %s", c.Status())
	}
}

func TestRetryPhotoResetsRecord(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := enqueueTestCapture(t, st, 6)

	retries := 4
	st.SetStatus(ctx, id, models.CaptureStatusFailed, &retries)

	r := NewRunner(st, portal.NewClient("http://127.0.0.1:0", 0), nil, 0)
	c := NewController(st, r, func() bool { return false })

	started, err := c.RetryPhoto(ctx, id)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if started {
		t.Fatal("no pass should start while offline")
	}

	got, _ := st.Get(ctx, id)
	if got.Status != models.CaptureStatusPending || got.RetryCount != 0 {
		t.Fatalf("retry should reset to pending/0, got %s/%d", got.Status, got.RetryCount)
	}
}

func TestRetryPhotoTriggersPassWhenOnline(t *testing.T) {
	f := newFakePortal(t)
	st := newTestStore(t)
	ctx := context.Background()
	id := enqueueTestCapture(t, st, 6)

	retries := 2
	st.SetStatus(ctx, id, models.CaptureStatusFailed, &retries)

	r := NewRunner(st, portal.NewClient(f.srv.URL, 0), nil, 0)
	c := NewController(st, r, func() bool { return true })

	started, err := c.RetryPhoto(ctx, id)
	if err != nil || !started {
		t.Fatalf("retry online: started=%v err=%v", started, err)
	}
	n, _ := st.Count(ctx)
	if n != 0 {
		t.Fatalf("retried capture should be delivered, %d remain", n)
	}
}
