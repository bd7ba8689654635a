package registry

import (
	"sort"
	"strings"
	"sync"
)

// DetectedApp is one entry of the device-scan catalog. App discovery itself
// is simulated; the catalog only exists so the monitoring flow has something
// to pick from.
type DetectedApp struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	IsSystemApp bool   `json:"isSystemApp"`
}

// CategoryCount summarizes how many registered apps share a category.
type CategoryCount struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

// Registry is the in-memory detected-app catalog, upserted by bulk device
// scans and queried by the selection UI.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]DetectedApp
	// order preserves first-seen ordering for stable listings.
	order []string
}

// New returns a registry seeded with the simulated device scan.
func New() *Registry {
	r := &Registry{apps: make(map[string]DetectedApp)}
	r.BulkRegister(seedCatalog())
	return r
}

// BulkRegister upserts a batch of detected apps keyed by package name and
// reports how many were new versus updated.
func (r *Registry) BulkRegister(apps []DetectedApp) (registered, updated int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, app := range apps {
		pkg := strings.TrimSpace(app.PackageName)
		if pkg == "" {
			continue
		}
		app.PackageName = pkg
		if app.DisplayName == "" {
			app.DisplayName = app.AppName
		}
		app.Category = strings.ToLower(strings.TrimSpace(app.Category))

		if _, exists := r.apps[pkg]; exists {
			updated++
		} else {
			registered++
			r.order = append(r.order, pkg)
		}
		r.apps[pkg] = app
	}
	return registered, updated
}

// All returns every registered app in first-seen order.
func (r *Registry) All() []DetectedApp {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DetectedApp, 0, len(r.order))
	for _, pkg := range r.order {
		out = append(out, r.apps[pkg])
	}
	return out
}

// Get looks up a detected app by package name.
func (r *Registry) Get(packageName string) (DetectedApp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[packageName]
	return app, ok
}

// Search filters by a case-insensitive substring over name, display name and
// package, optionally narrowed to a category. limit <= 0 means no limit.
func (r *Registry) Search(query, category string, limit int) []DetectedApp {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))

	var out []DetectedApp
	for _, app := range r.All() {
		if category != "" && app.Category != category {
			continue
		}
		if query != "" && !matchesQuery(app, query) {
			continue
		}
		out = append(out, app)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Categories returns per-category counts, most populous first.
func (r *Registry) Categories() []CategoryCount {
	counts := make(map[string]int)
	for _, app := range r.All() {
		if app.Category != "" {
			counts[app.Category]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, CategoryCount{
			Name:        name,
			DisplayName: displayName(name),
			Count:       count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func matchesQuery(app DetectedApp, query string) bool {
	return strings.Contains(strings.ToLower(app.AppName), query) ||
		strings.Contains(strings.ToLower(app.DisplayName), query) ||
		strings.Contains(strings.ToLower(app.PackageName), query)
}

func displayName(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// seedCatalog is the simulated device scan used when no real scan has been
// uploaded yet.
func seedCatalog() []DetectedApp {
	return []DetectedApp{
		{PackageName: "com.instagram.android", AppName: "Instagram", DisplayName: "Instagram", Category: "social"},
		{PackageName: "com.zhiliaoapp.musically", AppName: "TikTok", DisplayName: "TikTok", Category: "social"},
		{PackageName: "com.snapchat.android", AppName: "Snapchat", DisplayName: "Snapchat", Category: "social"},
		{PackageName: "com.twitter.android", AppName: "X", DisplayName: "X (Twitter)", Category: "social"},
		{PackageName: "com.facebook.katana", AppName: "Facebook", DisplayName: "Facebook", Category: "social"},
		{PackageName: "com.google.android.youtube", AppName: "YouTube", DisplayName: "YouTube", Category: "entertainment"},
		{PackageName: "com.netflix.mediaclient", AppName: "Netflix", DisplayName: "Netflix", Category: "entertainment"},
		{PackageName: "com.whatsapp", AppName: "WhatsApp", DisplayName: "WhatsApp", Category: "communication"},
		{PackageName: "org.telegram.messenger", AppName: "Telegram", DisplayName: "Telegram", Category: "communication"},
		{PackageName: "com.spotify.music", AppName: "Spotify", DisplayName: "Spotify", Category: "music"},
		{PackageName: "com.reddit.frontpage", AppName: "Reddit", DisplayName: "Reddit", Category: "news"},
		{PackageName: "com.supercell.clashofclans", AppName: "Clash of Clans", DisplayName: "Clash of Clans", Category: "games"},
		{PackageName: "com.amazon.mShop.android.shopping", AppName: "Amazon", DisplayName: "Amazon Shopping", Category: "shopping"},
	}
}
