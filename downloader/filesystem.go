package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Caches downloaded feeds in a directory, so that repeated merges of
// the same remote feeds don't download them every time.
//
// Each URL gets a body file and a small JSON record next to it, both
// named by the URL's SHA-256.
type Filesystem struct {
	Dir     string
	Logger  *slog.Logger
	TimeNow func() time.Time

	mutex sync.Mutex
}

type fsRecord struct {
	URL         string    `json:"url"`
	Size        int       `json:"size"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

func NewFilesystem(dir string) (*Filesystem, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	return &Filesystem{
		Dir:     dir,
		Logger:  slog.Default(),
		TimeNow: time.Now,
	}, nil
}

func (f *Filesystem) paths(url string) (string, string) {
	sum := sha256.Sum256([]byte(url))
	name := filepath.Join(f.Dir, hex.EncodeToString(sum[:]))
	return name + ".body", name + ".json"
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {

	f.mutex.Lock()
	defer f.mutex.Unlock()

	bodyPath, recordPath := f.paths(url)

	if options.Cache {
		body, found := f.lookup(url, bodyPath, recordPath, options.CacheTTL)
		if found {
			return body, nil
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	if options.Cache {
		err = f.store(url, body, bodyPath, recordPath)
		if err != nil {
			return nil, fmt.Errorf("saving: %w", err)
		}
	}

	return body, nil
}

// Reads a cached body. Anything unexpected on disk is a miss.
func (f *Filesystem) lookup(url, bodyPath, recordPath string, ttl time.Duration) ([]byte, bool) {
	buf, err := os.ReadFile(recordPath)
	if err != nil {
		return nil, false
	}

	record := fsRecord{}
	err = json.Unmarshal(buf, &record)
	if err != nil || record.URL != url {
		f.Logger.Warn("ignoring cache record", "url", url, "path", recordPath)
		return nil, false
	}

	if !record.RetrievedAt.Add(ttl).After(f.TimeNow()) {
		f.Logger.Debug("cache expired", "url", url, "retrieved_at", record.RetrievedAt)
		return nil, false
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil || len(body) != record.Size {
		f.Logger.Warn("ignoring cached body", "url", url, "path", bodyPath)
		return nil, false
	}

	f.Logger.Debug("cache hit", "url", url, "retrieved_at", record.RetrievedAt)
	return body, true
}

// The body is renamed into place before the record is written, so a
// record never points at a partial body.
func (f *Filesystem) store(url string, body []byte, bodyPath, recordPath string) error {
	tmp := bodyPath + ".tmp"
	err := os.WriteFile(tmp, body, 0644)
	if err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	err = os.Rename(tmp, bodyPath)
	if err != nil {
		return fmt.Errorf("renaming body: %w", err)
	}

	buf, err := json.Marshal(fsRecord{
		URL:         url,
		Size:        len(body),
		RetrievedAt: f.TimeNow().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	err = os.WriteFile(recordPath, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	return nil
}
