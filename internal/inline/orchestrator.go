package inline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/media-inliner/internal/cms"
	dataimport "github.com/JakeFAU/media-inliner/internal/errors"
	"github.com/JakeFAU/media-inliner/internal/fetch"
	"github.com/JakeFAU/media-inliner/internal/mediastore"
	"github.com/JakeFAU/media-inliner/internal/metrics"
	"github.com/JakeFAU/media-inliner/internal/namer"
	"github.com/JakeFAU/media-inliner/internal/scanner"
	"github.com/JakeFAU/media-inliner/internal/urlnorm"
)

// DefaultDomains is the built-in two-element list of known legacy CDNs used
// whenever the caller supplies none (§4.6, §6, §8's boundary behavior).
var DefaultDomains = []string{
	"https://s3.amazonaws.com/revue",
	"https://substackcdn.com",
}

// Fetcher retrieves raw bytes for a URL. A nil Media with a nil error means
// "skip this URL" per §4.2/§7's propagation policy.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Media, error)
}

// Detector decides a stored extension (and possibly transcodes) for a
// fetched payload.
type Detector interface {
	Detect(url string, body []byte, header http.Header) (extension string, data []byte)
}

// Drainer is satisfied by the queue manager: it blocks until every host's
// queue and active count have returned to zero.
type Drainer interface {
	WaitForAllQueues(ctx context.Context) error
}

// Counts summarizes one run for logging, metrics, and the optional
// completion-event payload (§10.6).
type Counts struct {
	Fetched   int
	Cached    int
	Failed    int
	Rewritten int
}

// JobResult is StartMediaInliner's return value (§6).
type JobResult struct {
	JobID  string
	Counts Counts
}

// postScalarFields and the per-resource-kind scalar field lists from §4.6.
var (
	postScalarFields     = []string{"feature_image"}
	postMetaScalarFields = []string{"og_image", "twitter_image"}
	tagScalarFields      = []string{"feature_image", "og_image", "twitter_image"}
	userScalarFields     = []string{"profile_image", "cover_image"}
	postContentFields    = []string{"mobiledoc", "lexical"}
)

// Orchestrator drives InliningOrchestrator's resource loop (§4.6).
type Orchestrator struct {
	store    cms.Store
	registry mediastore.Registry
	fetcher  Fetcher
	detector Detector
	drainer  Drainer
	log      *zap.Logger
}

// New builds an Orchestrator.
func New(store cms.Store, registry mediastore.Registry, fetcher Fetcher, detector Detector, drainer Drainer, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{store: store, registry: registry, fetcher: fetcher, detector: detector, drainer: drainer, log: log}
}

// Run processes every Post, PostMeta, Tag and User against domains,
// draining the queue manager and clearing the cache before returning, per
// §4.6's top-level loop.
func (o *Orchestrator) Run(ctx context.Context, jobID string, domains []string) (JobResult, error) {
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	cache := NewCache()
	counts := Counts{}

	if err := o.runPosts(ctx, domains, cache, &counts); err != nil {
		return JobResult{JobID: jobID, Counts: counts}, err
	}
	if err := o.runScalarResource(ctx, "post_meta", o.store.PostsMeta, postMetaScalarFields, domains, cache, &counts); err != nil {
		return JobResult{JobID: jobID, Counts: counts}, err
	}
	if err := o.runScalarResource(ctx, "tag", o.store.Tags, tagScalarFields, domains, cache, &counts); err != nil {
		return JobResult{JobID: jobID, Counts: counts}, err
	}
	if err := o.runScalarResource(ctx, "user", o.store.Users, userScalarFields, domains, cache, &counts); err != nil {
		return JobResult{JobID: jobID, Counts: counts}, err
	}

	if err := o.drainer.WaitForAllQueues(ctx); err != nil {
		return JobResult{JobID: jobID, Counts: counts}, err
	}

	return JobResult{JobID: jobID, Counts: counts}, nil
}

func (o *Orchestrator) runPosts(ctx context.Context, domains []string, cache *Cache, counts *Counts) error {
	resources, err := o.store.Posts.FindAll(ctx, cms.ResourceFilter{Internal: true})
	if err != nil {
		return err
	}

	for _, res := range resources {
		o.processResource("post", res.ID(), func() {
			fields := make(map[string]string)

			scalarUpdates := o.inlineField(ctx, res, postScalarFields, domains, cache, counts)
			for k, v := range scalarUpdates {
				fields[k] = v
			}

			for _, field := range postContentFields {
				content, ok := res.Get(field)
				if !ok || content == "" {
					continue
				}
				rewritten, err := o.inlineContent(ctx, content, domains, cache, counts)
				if err != nil {
					die := dataimport.New("post", res.ID(), dataimport.OpScan, err)
					o.log.Error("inline content failed", zap.String("field", field), zap.Error(die))
					continue
				}
				if rewritten != content {
					fields[field] = rewritten
				}
			}

			if len(fields) == 0 {
				return
			}
			if err := o.store.Posts.Edit(ctx, fields, cms.EditOptions{ID: res.ID(), Internal: true}); err != nil {
				die := dataimport.New("post", res.ID(), dataimport.OpPersist, err)
				o.log.Error("persist post failed", zap.Error(die))
				return
			}
			counts.Rewritten += len(fields)
			metrics.IncRewrites("post", len(fields))
		})
	}
	return nil
}

// processResource runs fn for one resource inside a boundary that recovers
// a panicking adapter call (a pluggable CMS store, storage adapter or
// detector implementation), converts it to a DataImportError, logs it, and
// lets the caller move on to the next resource instead of aborting the
// whole job (§10.2).
func (o *Orchestrator) processResource(resourceKind, resourceID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			die := dataimport.New(resourceKind, resourceID, dataimport.OpPersist, fmt.Errorf("panic: %v", r))
			o.log.Error("resource processing recovered from panic", zap.Error(die))
		}
	}()
	fn()
}

// pagedEditor is satisfied by PostMetaModel, TagModel and UserModel: the
// shapes differ only in which scalar fields matter.
type pagedEditor interface {
	FindPage(ctx context.Context, filter cms.PageFilter) (cms.Page, error)
	Edit(ctx context.Context, fields map[string]string, opts cms.EditOptions) error
}

func (o *Orchestrator) runScalarResource(ctx context.Context, resourceKind string, model pagedEditor, scalarFields, domains []string, cache *Cache, counts *Counts) error {
	page, err := model.FindPage(ctx, cms.PageFilter{Limit: "all"})
	if err != nil {
		return err
	}

	for _, res := range page.Resources {
		o.processResource(resourceKind, res.ID(), func() {
			updates := o.inlineField(ctx, res, scalarFields, domains, cache, counts)
			if len(updates) == 0 {
				return
			}
			if err := model.Edit(ctx, updates, cms.EditOptions{ID: res.ID(), Internal: true}); err != nil {
				die := dataimport.New(resourceKind, res.ID(), dataimport.OpPersist, err)
				o.log.Error("persist resource failed", zap.Error(die))
				return
			}
			counts.Rewritten += len(updates)
			metrics.IncRewrites(resourceKind, len(updates))
		})
	}
	return nil
}

// inlineField implements §4.6.1.
func (o *Orchestrator) inlineField(ctx context.Context, res cms.Resource, fields, domains []string, cache *Cache, counts *Counts) map[string]string {
	updates := make(map[string]string)

	for _, field := range fields {
		src, ok := res.Get(field)
		if !ok || src == "" {
			continue
		}
		for _, domain := range domains {
			if !strings.HasPrefix(src, domain) {
				continue
			}

			normalized := urlnorm.Normalize(src)
			path, hit, err := o.resolve(ctx, src, normalized, cache, counts)
			if err != nil {
				o.log.Warn("fetch failed for scalar field", zap.String("field", field), zap.String("url", src), zap.Error(err))
				break
			}
			if path == "" {
				break
			}
			if hit {
				counts.Cached++
			}
			updates[field] = "__GHOST_URL__" + path
			break
		}
	}
	return updates
}

// inlineContent implements §4.6.2.
func (o *Orchestrator) inlineContent(ctx context.Context, content string, domains []string, cache *Cache, counts *Counts) (string, error) {
	for _, domain := range domains {
		matches, err := scanner.Find(content, domain)
		if err != nil {
			return content, err
		}
		matches = scanner.Dedup(matches)

		for _, src := range matches {
			normalized := urlnorm.Normalize(src)
			path, hit, err := o.resolve(ctx, src, normalized, cache, counts)
			if err != nil {
				o.log.Warn("fetch failed for content match", zap.String("url", src), zap.Error(err))
				continue
			}
			if path == "" {
				continue
			}
			if hit {
				counts.Cached++
			}
			content, err = scanner.Rewrite(content, src, path)
			if err != nil {
				o.log.Warn("rewrite failed for content match", zap.String("url", src), zap.Error(err))
				continue
			}
		}
	}
	return content, nil
}

// resolve fetches (or reuses a cached) stored path for src, reporting
// whether the result came from the cache.
func (o *Orchestrator) resolve(ctx context.Context, src, normalized string, cache *Cache, counts *Counts) (path string, hit bool, err error) {
	wasCached := cache.contains(normalized)
	if wasCached {
		metrics.IncCacheHit()
	} else {
		metrics.IncCacheMiss()
	}

	path, err = cache.Resolve(normalized, func() (string, error) {
		return o.fetchDetectStore(ctx, normalized, counts)
	})
	return path, wasCached, err
}

func (o *Orchestrator) fetchDetectStore(ctx context.Context, normalized string, counts *Counts) (string, error) {
	media, err := o.fetcher.Fetch(ctx, normalized)
	if err != nil {
		counts.Failed++
		return "", err
	}
	if media == nil {
		counts.Failed++
		return "", nil
	}
	counts.Fetched++

	ext, data, err := o.safeDetect(normalized, media.Body, media.Header)
	if err != nil {
		counts.Failed++
		return "", err
	}

	adapter := o.registry.Select(ext)
	if adapter == nil {
		o.log.Warn("no storage adapter registered for extension", zap.String("extension", ext), zap.String("url", normalized))
		return "", nil
	}

	relPath, err := o.safeSave(ctx, adapter, normalized, data, ext)
	if err != nil {
		counts.Failed++
		return "", err
	}
	return relPath, nil
}

// safeDetect runs the detector inside a recover boundary: Detector is a
// pluggable interface and the sniffing/codec libraries behind it are known
// to panic on malformed input (§10.2).
func (o *Orchestrator) safeDetect(url string, body []byte, header http.Header) (ext string, data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dataimport.New("media", url, dataimport.OpDetect, fmt.Errorf("panic: %v", r))
		}
	}()
	ext, data = o.detector.Detect(url, body, header)
	return ext, data, nil
}

// safeSave runs a storage adapter write inside the same recover boundary,
// since an Adapter implementation (local/gcs/memory, or a future custom
// one) is pluggable and can panic on unexpected input (§10.2).
func (o *Orchestrator) safeSave(ctx context.Context, adapter mediastore.Adapter, url string, data []byte, ext string) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dataimport.New("media", url, dataimport.OpStore, fmt.Errorf("panic: %v", r))
		}
	}()
	store := namer.New(adapter)
	path, saveErr := store.Save(ctx, url, data, ext)
	if saveErr != nil {
		return "", dataimport.New("media", url, dataimport.OpStore, saveErr)
	}
	return path, nil
}
