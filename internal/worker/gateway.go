package worker

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/telemetry"
	"github.com/fieldport/fieldsync/internal/webcache"
)

// offlinePage is the last-resort synthesized response for the fallback
// route when even its cached copy is missing.
const offlinePage = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>Captured photos are saved on this device and will upload automatically
when the connection returns.</p>
</body>
</html>`

// ServeHTTP is the fetch-interception surface. Only GET requests outside
// the API prefix are subject to caching; everything else passes through to
// the origin untouched.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, w.cfg.Worker.APIPathPrefix) {
		w.passthrough(rw, r)
		return
	}

	key := r.URL.RequestURI()
	switch {
	case isNavigation(r):
		w.serveNavigation(rw, r, key)
	case hashedAssetRe.MatchString(r.URL.Path):
		w.serveCacheFirst(rw, r, key)
	case strings.HasPrefix(r.URL.Path, w.cfg.Worker.BuildPathPrefix):
		w.serveNetworkFirst(rw, r, key)
	default:
		w.serveStaleWhileRevalidate(rw, r, key)
	}
}

// isNavigation reports whether the request is a page navigation.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// serveNavigation is network-first. A successful fetch is cached and its
// markup re-harvested so newly deployed chunks get cached incrementally;
// a failed fetch falls back to the cache, the synthesized offline page, or
// a redirect to the offline route.
func (w *Worker) serveNavigation(rw http.ResponseWriter, r *http.Request, key string) {
	entry, err := w.fetchOrigin(r.Context(), key, false)
	if err == nil {
		if entry.Status == http.StatusOK {
			if cerr := w.cache.Put(key, entry); cerr != nil {
				logging.Warn("cache navigation response", map[string]interface{}{"key": key, "error": cerr.Error()})
			}
			go w.harvestIncremental(entry.Body)
		}
		writeEntry(rw, entry)
		return
	}

	telemetry.Incr(telemetry.CounterOfflineFallbacks)

	if r.URL.Path == w.cfg.Worker.OfflineRoute {
		if cached, ok := w.cache.Get(key); ok {
			writeEntry(rw, cached)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, offlinePage)
		return
	}

	if cached, ok := w.cache.Get(key); ok {
		writeEntry(rw, cached)
		return
	}
	http.Redirect(rw, r, w.cfg.Worker.OfflineRoute, http.StatusFound)
}

// harvestIncremental re-runs the asset scan over a freshly fetched page.
func (w *Worker) harvestIncremental(page []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	assets := w.scanAssets(page)
	if len(assets) > 0 {
		w.cacheAssets(ctx, assets)
	}
}

// serveCacheFirst handles content-hashed build assets: a cache hit is always
// valid because the asset is immutable, and a miss that also fails on the
// network is unrecoverable by retry.
func (w *Worker) serveCacheFirst(rw http.ResponseWriter, r *http.Request, key string) {
	if cached, ok := w.cache.Get(key); ok {
		telemetry.Incr(telemetry.CounterCacheHits)
		writeEntry(rw, cached)
		return
	}
	telemetry.Incr(telemetry.CounterCacheMisses)

	entry, err := w.fetchOrigin(r.Context(), key, false)
	if err != nil || entry.Status != http.StatusOK {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	if cerr := w.cache.Put(key, entry); cerr != nil {
		logging.Warn("cache asset", map[string]interface{}{"key": key, "error": cerr.Error()})
	}
	writeEntry(rw, entry)
}

// serveNetworkFirst handles non-hashed build paths.
func (w *Worker) serveNetworkFirst(rw http.ResponseWriter, r *http.Request, key string) {
	entry, err := w.fetchOrigin(r.Context(), key, false)
	if err == nil {
		if entry.Status == http.StatusOK {
			w.cache.Put(key, entry)
		}
		writeEntry(rw, entry)
		return
	}
	if cached, ok := w.cache.Get(key); ok {
		writeEntry(rw, cached)
		return
	}
	http.Error(rw, "origin unreachable", http.StatusBadGateway)
}

// serveStaleWhileRevalidate serves the cached copy immediately while
// refreshing it in the background; without one it waits on the network.
func (w *Worker) serveStaleWhileRevalidate(rw http.ResponseWriter, r *http.Request, key string) {
	if cached, ok := w.cache.Get(key); ok {
		telemetry.Incr(telemetry.CounterCacheHits)
		writeEntry(rw, cached)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if entry, err := w.fetchOrigin(ctx, key, false); err == nil && entry.Status == http.StatusOK {
				w.cache.Put(key, entry)
			}
		}()
		return
	}

	telemetry.Incr(telemetry.CounterCacheMisses)
	entry, err := w.fetchOrigin(r.Context(), key, false)
	if err != nil {
		http.Error(rw, "origin unreachable", http.StatusBadGateway)
		return
	}
	if entry.Status == http.StatusOK {
		w.cache.Put(key, entry)
	}
	writeEntry(rw, entry)
}

// passthrough streams a request to the origin untouched. API calls and
// non-GET methods are never cached or synthesized.
func (w *Worker) passthrough(rw http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method,
		w.cfg.Portal.Origin+r.URL.RequestURI(), r.Body)
	if err != nil {
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := w.client.Do(req)
	if err != nil {
		http.Error(rw, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			rw.Header().Add(key, v)
		}
	}
	rw.WriteHeader(resp.StatusCode)
	io.Copy(rw, resp.Body)
}

func writeEntry(rw http.ResponseWriter, e *webcache.Entry) {
	for key, values := range e.Header {
		for _, v := range values {
			rw.Header().Add(key, v)
		}
	}
	rw.WriteHeader(e.Status)
	rw.Write(e.Body)
}
