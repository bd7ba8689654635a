package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/screenwise/screentime-service/internal/monitor"
)

// UsageSource adapts the realtime-usage endpoint to monitor.UsageSource.
// One fetch serves a whole refresh pass: the response is cached briefly so
// sampling N monitored apps costs a single round trip.
type UsageSource struct {
	client *Client
	ttl    time.Duration

	mu        sync.Mutex
	fetchedAt time.Time
	byPackage map[string]int
}

// NewUsageSource wraps the client as a usage sensor. ttl bounds how long one
// realtime snapshot is reused; it should stay well under the refresh interval.
func NewUsageSource(client *Client, ttl time.Duration) *UsageSource {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &UsageSource{client: client, ttl: ttl}
}

var _ monitor.UsageSource = (*UsageSource)(nil)

func (s *UsageSource) Sample(ctx context.Context, packageName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byPackage == nil || time.Since(s.fetchedAt) > s.ttl {
		usage, err := s.client.FetchRealtimeUsage(ctx)
		if err != nil {
			return 0, err
		}
		byPackage := make(map[string]int, len(usage))
		for _, u := range usage {
			byPackage[u.PackageName] = u.TimeUsed
		}
		s.byPackage = byPackage
		s.fetchedAt = time.Now()
	}

	minutes, ok := s.byPackage[packageName]
	if !ok {
		return 0, fmt.Errorf("package %s not in realtime usage", packageName)
	}
	return minutes, nil
}
