package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ===========================
// Message Constants
// ===========================

const (
	MsgSourceCacheInitFail  = "Failed to initialize audio cache dir %s: %v"
	MsgSourceCacheHit       = "Cache hit for %s"
	MsgSourceCacheEvicted   = "Evicted cached audio: %s"
	MsgSourceCacheCommitted = "Cached audio file: %s (%d bytes)"
	MsgSourceCacheWriteFail = "Cache write failed for %s, streaming continues: %v"
	MsgSourceFetchStart     = "Fetching audio for %s"
)

const AudioCacheDir = ".tracks"

// ===========================
// Audio Cache
// ===========================

// AudioCache streams audio for tracks, keeping a bounded on-disk cache of
// completed downloads. Cache hits replay the local file; misses stream live
// from yt-dlp through a pipe while a best-effort copy lands in the cache.
// Eviction is insertion-ordered: oldest committed file goes first.
type AudioCache struct {
	mu      sync.Mutex
	dir     string
	max     int
	order   []string
	present map[string]bool
}

// NewAudioCache prepares the cache directory, adopting any completed files
// left over from a previous run. Stale .part files are discarded.
func NewAudioCache() (*AudioCache, error) {
	dir := AudioCacheDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		LogCache(MsgSourceCacheInitFail, dir, err)
		return nil, err
	}

	max := 50
	if GlobalConfig != nil && GlobalConfig.AudioCacheMaxFiles > 0 {
		max = GlobalConfig.AudioCacheMaxFiles
	}

	c := &AudioCache{
		dir:     dir,
		max:     max,
		present: make(map[string]bool),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type adopted struct {
		id  string
		mod int64
	}
	var found []adopted
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") {
			_ = os.Remove(filepath.Join(dir, name))
			continue
		}
		if !strings.HasSuffix(name, ".webm") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, adopted{id: strings.TrimSuffix(name, ".webm"), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod < found[j].mod })
	for _, f := range found {
		c.order = append(c.order, f.id)
		c.present[f.id] = true
	}
	c.evictLocked()
	return c, nil
}

func (c *AudioCache) path(id string) string {
	return filepath.Join(c.dir, id+".webm")
}

// OpenStream returns a reader over the track's audio. Closing the reader
// stops any in-flight fetch.
func (c *AudioCache) OpenStream(ctx context.Context, track Track) (io.ReadCloser, error) {
	id := ExtractTrackID(track.URL)

	if !track.IsLive {
		c.mu.Lock()
		cached := c.present[id]
		c.mu.Unlock()
		if cached {
			f, err := os.Open(c.path(id))
			if err == nil {
				LogCache(MsgSourceCacheHit, track.Title)
				return f, nil
			}
			// The file vanished underneath us; drop the entry and refetch.
			c.drop(id)
		}
	}

	LogCache(MsgSourceFetchStart, track.Title)

	// The fetch must outlive the caller's context (commands return quickly)
	// but die when the consumer closes the stream.
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pr, pw := io.Pipe()

	var out io.Writer = pw
	var part *os.File
	partPath := c.path(id) + ".part"
	if !track.IsLive {
		f, err := os.Create(partPath)
		if err != nil {
			LogCache(MsgSourceCacheWriteFail, track.Title, err)
		} else {
			part = f
			out = io.MultiWriter(pw, &swallowWriter{w: f, title: track.Title})
		}
	}

	safeGo(func() {
		err := ytdlpStream(fetchCtx, track.URL, out)
		if part != nil {
			info, _ := part.Stat()
			part.Close()
			if err != nil || fetchCtx.Err() != nil || info == nil || info.Size() == 0 {
				_ = os.Remove(partPath)
			} else if renameErr := os.Rename(partPath, c.path(id)); renameErr != nil {
				LogCache(MsgSourceCacheWriteFail, track.Title, renameErr)
				_ = os.Remove(partPath)
			} else {
				LogCache(MsgSourceCacheCommitted, c.path(id), info.Size())
				c.commit(id)
			}
		}
		pw.CloseWithError(err)
	})

	return &fetchStream{pr: pr, cancel: cancel}, nil
}

func (c *AudioCache) commit(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.present[id] {
		return
	}
	c.order = append(c.order, id)
	c.present[id] = true
	c.evictLocked()
}

func (c *AudioCache) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present[id] {
		return
	}
	delete(c.present, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *AudioCache) evictLocked() {
	for len(c.order) > c.max {
		id := c.order[0]
		c.order = c.order[1:]
		delete(c.present, id)
		if err := os.Remove(c.path(id)); err == nil || os.IsNotExist(err) {
			LogCache(MsgSourceCacheEvicted, id)
		}
	}
}

// Len reports the number of committed cache entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// fetchStream couples the pipe reader with the fetch cancel so closing the
// stream reliably kills the yt-dlp process.
type fetchStream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
}

func (s *fetchStream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *fetchStream) Close() error {
	s.cancel()
	return s.pr.Close()
}

// swallowWriter absorbs cache-file write errors so a full disk never
// interrupts live playback. After the first failure it stops writing.
type swallowWriter struct {
	w      io.Writer
	title  string
	failed bool
}

func (sw *swallowWriter) Write(p []byte) (int, error) {
	if !sw.failed {
		if _, err := sw.w.Write(p); err != nil {
			sw.failed = true
			LogCache(MsgSourceCacheWriteFail, sw.title, err)
		}
	}
	return len(p), nil
}
