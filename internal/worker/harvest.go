package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/webcache"
)

// hashedAssetRe matches content-hashed build artifact paths, e.g.
// /assets/app-3f9c2a1b.js. Hashed assets are immutable once built.
var hashedAssetRe = regexp.MustCompile(`(?:-|\.)[0-9a-f]{8,20}\.(?:m?js|css|woff2?|png|svg|webp)$`)

// assetPathRe scans raw markup for quoted build paths; it catches preload
// hints and inline import maps the node walk misses.
var assetPathRe = regexp.MustCompile(`["'](/[^"'\s]+?\.(?:m?js|css|woff2?|png|svg|webp))["']`)

// precacheOfflinePage fetches the designated offline-fallback route with the
// cache bypassed, stores it, then discovers and caches its build-asset
// dependencies. Returns how many of the discovered assets were cached and
// how many were found.
func (w *Worker) precacheOfflinePage(ctx context.Context) (cached, total int, err error) {
	route := w.cfg.Worker.OfflineRoute

	entry, err := w.fetchOrigin(ctx, route, true)
	if err != nil {
		return 0, 0, err
	}
	if entry.Status != http.StatusOK {
		return 0, 0, fmt.Errorf("offline route returned status %d", entry.Status)
	}
	if err := w.cache.Put(route, entry); err != nil {
		return 0, 0, err
	}

	assets := w.discoverAssets(ctx, entry.Body)
	cached = w.cacheAssets(ctx, assets)
	return cached, len(assets), nil
}

// discoverAssets lists the build-asset paths the cached page depends on.
// The build's asset manifest is authoritative when present; older
// deployments without one fall back to scanning the page markup.
func (w *Worker) discoverAssets(ctx context.Context, page []byte) []string {
	if assets := w.manifestAssets(ctx); len(assets) > 0 {
		return assets
	}
	return w.scanAssets(page)
}

// manifestAssets reads the build-time asset manifest, accepting either a
// bare list of paths or the {"files": {name: path}} map shape.
func (w *Worker) manifestAssets(ctx context.Context) []string {
	entry, err := w.fetchOrigin(ctx, w.cfg.Worker.ManifestPath, true)
	if err != nil || entry.Status != http.StatusOK {
		return nil
	}

	var list []string
	if err := json.Unmarshal(entry.Body, &list); err == nil {
		return dedupe(list)
	}

	var wrapped struct {
		Files map[string]string `json:"files"`
	}
	if err := json.Unmarshal(entry.Body, &wrapped); err == nil {
		paths := make([]string, 0, len(wrapped.Files))
		for _, p := range wrapped.Files {
			paths = append(paths, p)
		}
		return dedupe(paths)
	}
	return nil
}

// scanAssets extracts build-asset references from page markup: script/link/
// img nodes first, then a raw sweep for quoted asset paths.
func (w *Worker) scanAssets(page []byte) []string {
	var paths []string

	doc, err := html.Parse(strings.NewReader(string(page)))
	if err == nil {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				var attr string
				switch n.Data {
				case "script", "img":
					attr = "src"
				case "link":
					attr = "href"
				}
				if attr != "" {
					for _, a := range n.Attr {
						if a.Key == attr && w.isBuildAsset(a.Val) {
							paths = append(paths, a.Val)
						}
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
	}

	for _, m := range assetPathRe.FindAllStringSubmatch(string(page), -1) {
		if w.isBuildAsset(m[1]) {
			paths = append(paths, m[1])
		}
	}
	return dedupe(paths)
}

// isBuildAsset reports whether path points at a build-time static asset.
func (w *Worker) isBuildAsset(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return strings.HasPrefix(path, w.cfg.Worker.BuildPathPrefix) || hashedAssetRe.MatchString(path)
}

// cacheAssets fetches and caches each asset in parallel. A single missing
// asset must not abort the others, so failures are logged per asset and the
// successes are counted.
func (w *Worker) cacheAssets(ctx context.Context, assets []string) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		cached int
	)
	for _, asset := range assets {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if _, ok := w.cache.Get(path); ok {
				mu.Lock()
				cached++
				mu.Unlock()
				return
			}
			if err := w.fetchAndCache(ctx, path, false); err != nil {
				logging.Warn("asset precache failed", map[string]interface{}{"path": path, "error": err.Error()})
				return
			}
			mu.Lock()
			cached++
			mu.Unlock()
		}(asset)
	}
	wg.Wait()
	return cached
}

// fetchAndCache fetches one origin path and stores the response on success.
func (w *Worker) fetchAndCache(ctx context.Context, path string, bypassCache bool) error {
	entry, err := w.fetchOrigin(ctx, path, bypassCache)
	if err != nil {
		return err
	}
	if entry.Status < 200 || entry.Status > 299 {
		return fmt.Errorf("origin returned status %d", entry.Status)
	}
	return w.cache.Put(path, entry)
}

// fetchOrigin performs one GET against the portal origin and buffers the
// response into a cache entry.
func (w *Worker) fetchOrigin(ctx context.Context, path string, bypassCache bool) (*webcache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.Portal.Origin+path, nil)
	if err != nil {
		return nil, err
	}
	if bypassCache {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &webcache.Entry{
		Status: resp.StatusCode,
		Header: cacheableHeaders(resp.Header),
		Body:   body,
	}, nil
}

// cacheableHeaders keeps the header subset worth replaying offline.
func cacheableHeaders(h http.Header) http.Header {
	out := http.Header{}
	for _, key := range []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"} {
		if v := h.Get(key); v != "" {
			out.Set(key, v)
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
