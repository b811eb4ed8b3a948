package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, maxFiles int) *AudioCache {
	t.Helper()
	t.Chdir(t.TempDir())

	prev := GlobalConfig
	GlobalConfig = &Config{AudioCacheMaxFiles: maxFiles}
	t.Cleanup(func() { GlobalConfig = prev })

	c, err := NewAudioCache()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeCacheFile(t *testing.T, id string, mod time.Time) {
	t.Helper()
	path := filepath.Join(AudioCacheDir, id+".webm")
	if err := os.WriteFile(path, []byte("audio-"+id), 0644); err != nil {
		t.Fatal(err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAudioCacheCommitEvictsOldest(t *testing.T) {
	c := newTestCache(t, 2)

	for _, id := range []string{"a", "b", "c"} {
		writeCacheFile(t, id, time.Time{})
		c.commit(id)
	}

	if c.Len() != 2 {
		t.Fatalf("cache holds %d entries, want 2", c.Len())
	}
	if _, err := os.Stat(filepath.Join(AudioCacheDir, "a.webm")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("oldest entry a.webm not evicted")
	}
	for _, id := range []string{"b", "c"} {
		if _, err := os.Stat(filepath.Join(AudioCacheDir, id+".webm")); err != nil {
			t.Fatalf("%s.webm missing: %v", id, err)
		}
	}
}

func TestAudioCacheCommitIdempotent(t *testing.T) {
	c := newTestCache(t, 5)
	writeCacheFile(t, "a", time.Time{})
	c.commit("a")
	c.commit("a")
	if c.Len() != 1 {
		t.Fatalf("duplicate commit grew the cache to %d", c.Len())
	}
}

func TestAudioCacheAdoptsLeftovers(t *testing.T) {
	t.Chdir(t.TempDir())
	prev := GlobalConfig
	GlobalConfig = &Config{AudioCacheMaxFiles: 2}
	t.Cleanup(func() { GlobalConfig = prev })

	if err := os.MkdirAll(AudioCacheDir, 0755); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	writeCacheFile(t, "old", now.Add(-3*time.Hour))
	writeCacheFile(t, "mid", now.Add(-2*time.Hour))
	writeCacheFile(t, "new", now.Add(-time.Hour))
	if err := os.WriteFile(filepath.Join(AudioCacheDir, "stale.webm.part"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := NewAudioCache()
	if err != nil {
		t.Fatal(err)
	}

	// Oldest adopted file evicted down to the limit; .part discarded.
	if c.Len() != 2 {
		t.Fatalf("adopted %d entries, want 2", c.Len())
	}
	if _, err := os.Stat(filepath.Join(AudioCacheDir, "old.webm")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("oldest leftover not evicted")
	}
	if _, err := os.Stat(filepath.Join(AudioCacheDir, "stale.webm.part")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("stale .part file not removed")
	}
}

func TestAudioCacheHitServesLocalFile(t *testing.T) {
	c := newTestCache(t, 5)
	url := "https://www.youtube.com/watch?v=hit123"
	id := ExtractTrackID(url)
	writeCacheFile(t, id, time.Time{})
	c.commit(id)

	stream, err := c.OpenStream(t.Context(), Track{ID: id, Title: "cached", URL: url})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(stream); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "audio-"+id {
		t.Fatalf("cache hit returned %q", got)
	}
}

func TestAudioCacheDropOnVanishedFile(t *testing.T) {
	c := newTestCache(t, 5)
	writeCacheFile(t, "gone", time.Time{})
	c.commit("gone")
	if err := os.Remove(filepath.Join(AudioCacheDir, "gone.webm")); err != nil {
		t.Fatal(err)
	}

	c.drop("gone")
	if c.Len() != 0 {
		t.Fatalf("dropped entry still counted: %d", c.Len())
	}
	// Dropping again is a no-op.
	c.drop("gone")
}

func TestSwallowWriterAbsorbsFailures(t *testing.T) {
	var buf bytes.Buffer
	sw := &swallowWriter{w: &buf, title: "t"}
	if n, err := sw.Write([]byte("ok")); n != 2 || err != nil {
		t.Fatalf("write = %d, %v", n, err)
	}
	if buf.String() != "ok" {
		t.Fatalf("underlying writer got %q", buf.String())
	}

	sw = &swallowWriter{w: failWriter{}, title: "t"}
	if n, err := sw.Write([]byte("data")); n != 4 || err != nil {
		t.Fatalf("failed write surfaced: %d, %v", n, err)
	}
	if !sw.failed {
		t.Fatal("failure not latched")
	}
	// Subsequent writes skip the broken writer but still report success.
	if n, err := sw.Write([]byte("more")); n != 4 || err != nil {
		t.Fatalf("post-failure write = %d, %v", n, err)
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }
