// Package fetch implements the MediaFetcher façade (§4.2): a thin layer over
// the Queue Manager that normalizes the URL, classifies failures for
// logging, and degrades to a nil result rather than aborting the caller's
// resource loop.
package fetch

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	dataimport "github.com/JakeFAU/media-inliner/internal/errors"
	"github.com/JakeFAU/media-inliner/internal/queue"
	"github.com/JakeFAU/media-inliner/internal/urlnorm"
)

// Requester is the subset of queue.Manager the fetcher depends on, so tests
// can substitute a fake without standing up a real Manager.
type Requester interface {
	QueueRequest(ctx context.Context, req queue.Request) (queue.Response, error)
}

// Media is the bytes and headers fetched for one URL, ephemeral until a
// caller hands it to the type detector and then a storage adapter.
type Media struct {
	URL    string
	Body   []byte
	Header http.Header
	Status int
}

// Fetcher is the MediaFetcher façade.
type Fetcher struct {
	manager           Requester
	log               *zap.Logger
	retryableStatuses map[int]struct{}
}

// New builds a Fetcher over manager, logging retryable-status failures at
// warn and everything else at error.
func New(manager Requester, log *zap.Logger, retryableStatuses map[int]struct{}) *Fetcher {
	return &Fetcher{manager: manager, log: log, retryableStatuses: retryableStatuses}
}

// Fetch retrieves the body at rawURL. A nil Media and nil error both mean
// "no media, proceed with other URLs" per §4.2 and §7's propagation policy;
// a non-nil error is only returned for a malformed URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Media, error) {
	normalized := urlnorm.Normalize(rawURL)

	resp, err := f.manager.QueueRequest(ctx, queue.Request{
		URL:    normalized,
		Method: http.MethodGet,
	})
	if err != nil {
		var die *dataimport.DataImportError
		if errors.As(err, &die) {
			f.log.Error("fetch failed: invalid url", zap.String("url", rawURL), zap.Error(err))
			return nil, err
		}

		if f.isRetryableErr(resp.StatusCode) {
			f.log.Warn("fetch failed after retries", zap.String("url", rawURL), zap.Int("status", resp.StatusCode), zap.Error(err))
		} else {
			f.log.Error("fetch failed", zap.String("url", rawURL), zap.Int("status", resp.StatusCode), zap.Error(err))
		}
		return nil, nil
	}

	header := http.Header(resp.Header)
	return &Media{URL: normalized, Body: resp.Body, Header: header, Status: resp.StatusCode}, nil
}

func (f *Fetcher) isRetryableErr(status int) bool {
	_, ok := f.retryableStatuses[status]
	return ok
}
