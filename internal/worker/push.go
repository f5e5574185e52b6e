package worker

import (
	"encoding/json"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/telemetry"
)

// Notification is a decoded push payload.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
}

// Notifier displays notifications to the user. The daemon has no UI of its
// own; implementations bridge to whatever the host offers.
type Notifier interface {
	Show(n Notification) error
}

// LogNotifier writes notifications to the log. It is the default when no
// desktop bridge is wired up.
type LogNotifier struct{}

// Show implements Notifier.
func (LogNotifier) Show(n Notification) error {
	logging.Info("notification", map[string]interface{}{"title": n.Title, "body": n.Body})
	return nil
}

// HandlePush reacts to a platform push event. An absent or malformed
// payload is a no-op; push handling never fails the caller.
func (w *Worker) HandlePush(payload []byte) {
	if len(payload) == 0 {
		return
	}

	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		logging.Warn("drop malformed push payload", map[string]interface{}{"error": err.Error()})
		return
	}
	if n.Title == "" {
		n.Title = "FieldSync"
	}

	if err := w.notifier.Show(n); err != nil {
		logging.Warn("show notification", map[string]interface{}{"error": err.Error()})
		return
	}
	telemetry.Incr(telemetry.CounterPushesShown)
}

// HandleNotificationAction reacts to the user's choice on a notification.
// The open/default action focuses a connected foreground agent when one
// exists; otherwise the target URL is handed to the notifier host to open a
// fresh page. Dismiss does nothing.
func (w *Worker) HandleNotificationAction(action, targetURL string) {
	if action == "dismiss" {
		return
	}
	if w.hub != nil && w.hub.ClientCount() > 0 {
		w.hub.Broadcast(models.NewMessage(models.MsgFocusPage, map[string]any{"url": targetURL}))
		return
	}
	if opener, ok := w.notifier.(PageOpener); ok {
		if err := opener.OpenPage(targetURL); err != nil {
			logging.Warn("open page", map[string]interface{}{"url": targetURL, "error": err.Error()})
		}
		return
	}
	logging.Info("no open context for notification target", map[string]interface{}{"url": targetURL})
}

// PageOpener is implemented by notifiers that can open a fresh page.
type PageOpener interface {
	OpenPage(url string) error
}
