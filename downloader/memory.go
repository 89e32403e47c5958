package downloader

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Caches downloaded files in memory. Concurrent requests for the
// same URL share a single download.
type MemoryDownloader struct {
	mutex  sync.Mutex
	cache  map[string]downloaderCacheEntry
	flight singleflight.Group

	TimeNow func() time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		cache:   make(map[string]downloaderCacheEntry),
		TimeNow: time.Now,
	}
}

type downloaderCacheEntry struct {
	data       []byte
	expiration time.Time
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if !options.Cache {
		return HTTPGet(ctx, url, headers, options)
	}

	d.mutex.Lock()
	entry, ok := d.cache[url]
	d.mutex.Unlock()
	if ok && entry.expiration.After(d.TimeNow()) {
		return entry.data, nil
	}

	body, err, _ := d.flight.Do(url, func() (interface{}, error) {
		body, err := HTTPGet(ctx, url, headers, options)
		if err != nil {
			return nil, err
		}

		d.mutex.Lock()
		d.cache[url] = downloaderCacheEntry{
			data:       body,
			expiration: d.TimeNow().Add(options.CacheTTL),
		}
		d.mutex.Unlock()

		return body, nil
	})
	if err != nil {
		return nil, err
	}

	return body.([]byte), nil
}
