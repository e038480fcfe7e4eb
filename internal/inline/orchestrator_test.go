package inline

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/JakeFAU/media-inliner/internal/cms"
	cmsmemory "github.com/JakeFAU/media-inliner/internal/cms/memory"
	"github.com/JakeFAU/media-inliner/internal/fetch"
	"github.com/JakeFAU/media-inliner/internal/mediastore"
	mediamemory "github.com/JakeFAU/media-inliner/internal/mediastore/memory"
	"github.com/JakeFAU/media-inliner/internal/metrics"
)

// TestMain registers the metrics collectors once for every test in this
// package, since Run records cache hit/miss and rewrite metrics.
func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeFetcher struct {
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Media, error) {
	f.calls.Add(1)
	return &fetch.Media{URL: url, Body: []byte("bytes"), Status: 200}, nil
}

// deadLinkFetcher mimics the MediaFetcher façade's contract for a broken
// legacy-CDN link: a non-retryable HTTP failure (e.g. a 404) degrades to a
// nil Media and a nil error (§4.2/§7), never an error returned from Fetch.
type deadLinkFetcher struct {
	calls atomic.Int32
}

func (f *deadLinkFetcher) Fetch(context.Context, string) (*fetch.Media, error) {
	f.calls.Add(1)
	return nil, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(_ string, body []byte, _ http.Header) (string, []byte) {
	return "png", body
}

type noopDrainer struct{}

func (noopDrainer) WaitForAllQueues(context.Context) error { return nil }

func newTestRegistry() mediastore.Registry {
	adapter := mediamemory.New("mem://root")
	return mediastore.Registry{
		Table:  mediastore.NewExtensionTable([]string{".png"}, []string{".mp4"}, []string{".pdf"}),
		Images: adapter,
	}
}

// TestRunRewritesScalarFieldAndBodyFromSingleFetch mirrors SPEC_FULL.md §8
// scenario S2: one post with feature_image and a duplicated body reference
// to the same URL results in exactly one HTTP fetch and all three
// references rewritten.
func TestRunRewritesScalarFieldAndBodyFromSingleFetch(t *testing.T) {
	t.Parallel()

	const domain = "https://substackcdn.com"
	const url = domain + "/a/b.png"

	posts := cmsmemory.NewTable(cmsmemory.Row{
		ID: "1",
		Fields: map[string]string{
			"feature_image": url,
			"lexical":       `{"body":"` + url + ` and again ` + url + `"}`,
		},
	})
	store := cms.Store{
		Posts:     posts,
		PostsMeta: cmsmemory.NewTable(),
		Tags:      cmsmemory.NewTable(),
		Users:     cmsmemory.NewTable(),
	}

	fetcher := &fakeFetcher{}
	orch := New(store, newTestRegistry(), fetcher, fakeDetector{}, noopDrainer{}, zap.NewNop())

	result, err := orch.Run(context.Background(), "job-1", []string{domain})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.calls.Load() != 1 {
		t.Fatalf("expected exactly 1 HTTP fetch, got %d", fetcher.calls.Load())
	}

	featureImage, _ := posts.Get("1", "feature_image")
	if !strings.HasPrefix(featureImage, "__GHOST_URL__") {
		t.Fatalf("expected feature_image rewritten, got %q", featureImage)
	}

	lexical, _ := posts.Get("1", "lexical")
	if strings.Contains(lexical, "substackcdn.com") {
		t.Fatalf("expected every body reference rewritten, got %q", lexical)
	}
	if strings.Count(lexical, "__GHOST_URL__") != 2 {
		t.Fatalf("expected both body occurrences rewritten, got %q", lexical)
	}

	if result.Counts.Fetched != 1 {
		t.Fatalf("expected fetched count 1, got %d", result.Counts.Fetched)
	}
}

// TestRunSharesFetchAcrossTwoPosts mirrors S3: two posts referencing the
// same URL still produce exactly one HTTP GET.
func TestRunSharesFetchAcrossTwoPosts(t *testing.T) {
	t.Parallel()

	const domain = "https://substackcdn.com"
	const url = domain + "/shared.png"

	posts := cmsmemory.NewTable(
		cmsmemory.Row{ID: "1", Fields: map[string]string{"feature_image": url}},
		cmsmemory.Row{ID: "2", Fields: map[string]string{"feature_image": url}},
	)
	store := cms.Store{
		Posts:     posts,
		PostsMeta: cmsmemory.NewTable(),
		Tags:      cmsmemory.NewTable(),
		Users:     cmsmemory.NewTable(),
	}

	fetcher := &fakeFetcher{}
	orch := New(store, newTestRegistry(), fetcher, fakeDetector{}, noopDrainer{}, zap.NewNop())

	if _, err := orch.Run(context.Background(), "job-2", []string{domain}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.calls.Load() != 1 {
		t.Fatalf("expected exactly 1 HTTP fetch shared across both posts, got %d", fetcher.calls.Load())
	}

	p1, _ := posts.Get("1", "feature_image")
	p2, _ := posts.Get("2", "feature_image")
	if p1 != p2 {
		t.Fatalf("expected both posts rewritten to the same stored path, got %q and %q", p1, p2)
	}
}

// TestRunEmptyDomainsFallsBackToDefaults covers S1's default-domains path.
func TestRunEmptyDomainsFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	store := cms.Store{
		Posts:     cmsmemory.NewTable(),
		PostsMeta: cmsmemory.NewTable(),
		Tags:      cmsmemory.NewTable(),
		Users:     cmsmemory.NewTable(),
	}
	fetcher := &fakeFetcher{}
	orch := New(store, newTestRegistry(), fetcher, fakeDetector{}, noopDrainer{}, zap.NewNop())

	result, err := orch.Run(context.Background(), "job-3", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Counts.Fetched != 0 {
		t.Fatalf("expected no fetches against an empty corpus, got %d", result.Counts.Fetched)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatal("expected no fetches against an empty corpus")
	}
}

// TestRunLeavesBrokenLinkUnrewritten guards against a dead legacy-CDN URL
// (404/403/500, not configured retryable) getting sniffed, stored, and
// rewritten as if it were real media: the reference must survive untouched
// and the failure must only bump Counts.Failed.
func TestRunLeavesBrokenLinkUnrewritten(t *testing.T) {
	t.Parallel()

	const domain = "https://substackcdn.com"
	const url = domain + "/gone.png"

	posts := cmsmemory.NewTable(cmsmemory.Row{
		ID: "1",
		Fields: map[string]string{
			"feature_image": url,
			"lexical":       `{"body":"` + url + `"}`,
		},
	})
	store := cms.Store{
		Posts:     posts,
		PostsMeta: cmsmemory.NewTable(),
		Tags:      cmsmemory.NewTable(),
		Users:     cmsmemory.NewTable(),
	}

	fetcher := &deadLinkFetcher{}
	orch := New(store, newTestRegistry(), fetcher, fakeDetector{}, noopDrainer{}, zap.NewNop())

	result, err := orch.Run(context.Background(), "job-4", []string{domain})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.calls.Load() != 1 {
		t.Fatalf("expected exactly 1 attempted fetch, got %d", fetcher.calls.Load())
	}
	if result.Counts.Failed != 1 {
		t.Fatalf("expected failed count 1, got %d", result.Counts.Failed)
	}
	if result.Counts.Rewritten != 0 {
		t.Fatalf("expected nothing rewritten for a broken link, got %d", result.Counts.Rewritten)
	}

	featureImage, _ := posts.Get("1", "feature_image")
	if featureImage != url {
		t.Fatalf("expected feature_image left untouched, got %q", featureImage)
	}

	lexical, _ := posts.Get("1", "lexical")
	if !strings.Contains(lexical, url) {
		t.Fatalf("expected body reference left untouched, got %q", lexical)
	}
	if strings.Contains(lexical, "__GHOST_URL__") {
		t.Fatalf("expected no rewrite token inserted for a broken link, got %q", lexical)
	}
}
