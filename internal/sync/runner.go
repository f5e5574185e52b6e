// Package sync drains the durable capture queue against the network. The
// three-step upload protocol lives in one Runner parameterized by a queue
// interface, so the foreground controller and the daemon's fallback path run
// the same code against their own store handles.
package sync

import (
	"context"
	"time"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/portal"
	"github.com/fieldport/fieldsync/internal/telemetry"
)

// LeaseName is the queue lease both sync contexts contend on.
const LeaseName = "photo-upload"

// Queue is the slice of the durable store the protocol needs.
type Queue interface {
	ListPending(ctx context.Context) ([]*models.PendingCapture, error)
	Get(ctx context.Context, id int64) (*models.PendingCapture, error)
	SetStatus(ctx context.Context, id int64, status models.CaptureStatus, retryCount *int) error
	Remove(ctx context.Context, id int64) error
}

// Leaser grants the cross-context sync lease.
type Leaser interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// Broadcaster delivers a cross-context message, best-effort. A nil
// Broadcaster drops messages.
type Broadcaster func(models.Message)

// Runner executes the upload protocol over queue records.
type Runner struct {
	queue     Queue
	portal    *portal.Client
	broadcast Broadcaster
	delay     time.Duration
}

// NewRunner creates a Runner. delay is the pause inserted between items so a
// weak connection is not saturated.
func NewRunner(queue Queue, client *portal.Client, broadcast Broadcaster, delay time.Duration) *Runner {
	return &Runner{
		queue:     queue,
		portal:    client,
		broadcast: broadcast,
		delay:     delay,
	}
}

// Stats summarizes one drain pass.
type Stats struct {
	Attempted int
	Delivered int
	Failed    int
	Aborted   bool
}

// UploadOne runs the three-step protocol for a single capture: credential
// request, direct binary transfer, metadata registration. On success the
// record is deleted and a completion broadcast is sent. On failure the
// record is left for the caller's retry bookkeeping; no step failure is
// fatal to anything but this attempt.
func (r *Runner) UploadOne(ctx context.Context, c *models.PendingCapture) error {
	mime := portal.SniffMimeType(c.Payload, c.MimeType)

	cred, err := r.portal.IssueUploadCredential(ctx, c.FileName, mime, c.FileSize)
	if err != nil {
		return err
	}
	if cred.Key == "" {
		cred.Key = portal.NewObjectKey(c.FileName)
	}

	if err := r.portal.TransferObject(ctx, cred.PresignedURL, mime, c.Payload); err != nil {
		return err
	}

	record := portal.PhotoRecord{
		FileURL:     cred.PublicURL,
		FileKey:     cred.Key,
		FileName:    c.FileName,
		FileSize:    c.FileSize,
		MimeType:    mime,
		Category:    c.Category,
		Note:        c.Note,
		CapturedAt:  c.CapturedAt,
		MilestoneID: c.MilestoneID,
		Tags:        c.Tags,
	}
	if c.Location != nil {
		record.Latitude = &c.Location.Latitude
		record.Longitude = &c.Location.Longitude
		record.Accuracy = &c.Location.Accuracy
	}
	if err := r.portal.RegisterPhotos(ctx, c.ProjectID, []portal.PhotoRecord{record}); err != nil {
		return err
	}

	if err := r.queue.Remove(ctx, c.ID); err != nil {
		// The upload landed; the record will be re-delivered next pass.
		// At-least-once, not exactly-once.
		return err
	}
	if r.broadcast != nil {
		r.broadcast(models.PhotoSyncComplete(c.ProjectID))
	}
	return nil
}

// Drain runs the protocol over every pending or mid-flight record, one at a
// time in store order. The pass aborts early when online() turns false or
// the context is cancelled; remaining items are left untouched. Failed items
// return to pending with an incremented retry count and are never dropped.
func (r *Runner) Drain(ctx context.Context, online func() bool, onChange func()) Stats {
	var stats Stats
	telemetry.Incr(telemetry.CounterSyncPasses)

	notify := func() {
		if onChange != nil {
			onChange()
		}
	}

	items, err := r.queue.ListPending(ctx)
	if err != nil {
		logging.Error("list pending captures", err)
		return stats
	}

	for _, item := range items {
		if ctx.Err() != nil || (online != nil && !online()) {
			stats.Aborted = true
			break
		}

		if err := r.queue.SetStatus(ctx, item.ID, models.CaptureStatusUploading, nil); err != nil {
			logging.Error("mark capture uploading", err, map[string]interface{}{"id": item.ID})
			continue
		}
		notify()

		stats.Attempted++
		if err := r.UploadOne(ctx, item); err != nil {
			retries := item.RetryCount + 1
			if serr := r.queue.SetStatus(ctx, item.ID, models.CaptureStatusPending, &retries); serr != nil {
				logging.Error("reset capture to pending", serr, map[string]interface{}{"id": item.ID})
			}
			stats.Failed++
			telemetry.Incr(telemetry.CounterCaptureFailures)
			logging.Warn("capture delivery failed, will retry", map[string]interface{}{
				"id": item.ID, "project": item.ProjectID, "retries": retries, "error": err.Error(),
			})
		} else {
			stats.Delivered++
			telemetry.Incr(telemetry.CounterCapturesDelivered)
			logging.Info("capture delivered", map[string]interface{}{
				"id": item.ID, "project": item.ProjectID,
			})
		}
		notify()

		if r.delay > 0 {
			select {
			case <-ctx.Done():
				stats.Aborted = true
				return stats
			case <-time.After(r.delay):
			}
		}
	}
	return stats
}
