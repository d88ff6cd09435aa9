package berealex

import (
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	Path string
	Ts   ResolvedTimestamp
	Loc  *Location
	Kind MediaKind
}

// fakeWriter records embed calls instead of invoking exiftool.
type fakeWriter struct {
	mu    sync.Mutex
	calls []fakeCall
	fail  bool
}

func (w *fakeWriter) Write(path string, ts ResolvedTimestamp, loc *Location, kind MediaKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return assert.AnError
	}
	w.calls = append(w.calls, fakeCall{Path: path, Ts: ts, Loc: loc, Kind: kind})
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func utcResolver(t *testing.T) *TimezoneResolver {
	t.Helper()
	r, err := NewTimezoneResolver("UTC", false)
	require.NoError(t, err)
	return r
}

func seedMemoriesExport(t *testing.T, cfg *Config) {
	t.Helper()
	writeFile(t, cfg.manifestPath("memories.json"), memoriesJSON)
	writeFile(t, filepath.Join(cfg.BeRealPath, "Photos", "post", "front1.webp"), "f1")
	writeFile(t, filepath.Join(cfg.BeRealPath, "Photos", "post", "back1.webp"), "b1")
	writeFile(t, filepath.Join(cfg.BeRealPath, "Photos", "post", "front2.webp"), "f2")
	// back2.webp and the bts clip are deliberately absent
}

func TestExporter_Run(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 2
	seedMemoriesExport(t, cfg)

	fw := &fakeWriter{}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)

	counts := summary.Counts[CategoryMemories]
	require.NotNil(t, counts)
	assert.Equal(t, 3, counts.Done)
	assert.Equal(t, 0, counts.CopyFailed)
	assert.Equal(t, 0, counts.EmbedFailed)
	assert.Equal(t, 2, counts.Missing)
	assert.False(t, summary.AllFailed())

	outDir := filepath.Join(cfg.OutPath, "memories")
	for _, name := range []string{
		"2022-06-15_10-00-00_front.webp",
		"2022-06-15_10-00-00_back.webp",
		"2021-03-01_20-30-00_front.webp",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	require.Len(t, fw.calls, 3)
	withGPS := 0
	for _, c := range fw.calls {
		assert.Equal(t, KindImage, c.Kind)
		if c.Loc != nil {
			withGPS++
		}
	}
	assert.Equal(t, 2, withGPS)
}

func TestExporter_EmbedFailureKeepsCopy(t *testing.T) {
	cfg := testConfig(t)
	seedMemoriesExport(t, cfg)

	fw := &fakeWriter{fail: true}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)

	counts := summary.Counts[CategoryMemories]
	assert.Equal(t, 0, counts.Done)
	assert.Equal(t, 3, counts.EmbedFailed)
	assert.True(t, summary.AllFailed())

	// the copied file stays on disk, just untagged
	_, err = os.Stat(filepath.Join(cfg.OutPath, "memories", "2022-06-15_10-00-00_front.webp"))
	assert.NoError(t, err)
}

func TestExporter_DateFilter(t *testing.T) {
	cfg := testConfig(t)
	seedMemoriesExport(t, cfg)

	filter, err := NewDateFilter("", 2022)
	require.NoError(t, err)
	cfg.Filter = filter

	fw := &fakeWriter{}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)

	counts := summary.Counts[CategoryMemories]
	assert.Equal(t, 2, counts.Done)
	assert.Equal(t, 1, counts.Filtered)

	_, err = os.Stat(filepath.Join(cfg.OutPath, "memories", "2021-03-01_20-30-00_front.webp"))
	assert.True(t, os.IsNotExist(err))
}

func TestExporter_Composite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Composite = true
	writeFile(t, cfg.manifestPath("memories.json"), `[
	  {
	    "frontImage": {"path": "/Photos/post/uid/front.jpg"},
	    "backImage": {"path": "/Photos/post/uid/back.jpg"},
	    "takenTime": "2022-06-15T10:00:00.000Z"
	  }
	]`)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.BeRealPath, "Photos", "post"), 0o755))
	require.NoError(t, imgio.Save(filepath.Join(cfg.BeRealPath, "Photos", "post", "back.jpg"),
		uniformImage(120, 160, color.RGBA{B: 200, A: 255}), imgio.JPEGEncoder(90)))
	require.NoError(t, imgio.Save(filepath.Join(cfg.BeRealPath, "Photos", "post", "front.jpg"),
		uniformImage(90, 120, color.RGBA{R: 200, A: 255}), imgio.JPEGEncoder(90)))

	fw := &fakeWriter{}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Counts[CategoryMemories].Done)

	compPath := filepath.Join(cfg.OutPath, "memories", "2022-06-15_10-00-00_composited.jpg")
	comp, err := imgio.Open(compPath)
	require.NoError(t, err)
	assert.Equal(t, 120, comp.Bounds().Dx())
	assert.Equal(t, 160, comp.Bounds().Dy())
}

func TestExporter_SameSecondCollision(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.manifestPath("memories.json"), `[
	  {"frontImage": {"path": "/Photos/post/uid/a.webp"}, "takenTime": "2022-06-15T10:00:00.000Z"},
	  {"frontImage": {"path": "/Photos/post/uid/b.webp"}, "takenTime": "2022-06-15T10:00:00.000Z"}
	]`)
	writeFile(t, filepath.Join(cfg.BeRealPath, "Photos", "post", "a.webp"), "a")
	writeFile(t, filepath.Join(cfg.BeRealPath, "Photos", "post", "b.webp"), "b")

	fw := &fakeWriter{}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts[CategoryMemories].Done)

	outDir := filepath.Join(cfg.OutPath, "memories")
	_, err = os.Stat(filepath.Join(outDir, "2022-06-15_10-00-00_front.webp"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "2022-06-15_10-00-00_front-1.webp"))
	assert.NoError(t, err)
}

func TestExporter_SequentialWorker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 1
	seedMemoriesExport(t, cfg)

	fw := &fakeWriter{}
	summary, err := NewExporter(cfg, utcResolver(t), fw).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Counts[CategoryMemories].Done)
}

func TestExporter_ConfigErrors(t *testing.T) {
	t.Run("bad input path", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.BeRealPath = filepath.Join(cfg.BeRealPath, "nope")

		_, err := NewExporter(cfg, utcResolver(t), &fakeWriter{}).Run()
		var ce *ConfigError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("missing manifest", func(t *testing.T) {
		cfg := testConfig(t)

		_, err := NewExporter(cfg, utcResolver(t), &fakeWriter{}).Run()
		var ce *ConfigError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	planned := map[string]bool{}

	first := uniquePath(planned, filepath.Join(dir, "x.webp"))
	assert.Equal(t, filepath.Join(dir, "x.webp"), first)

	second := uniquePath(planned, filepath.Join(dir, "x.webp"))
	assert.Equal(t, filepath.Join(dir, "x-1.webp"), second)

	writeFile(t, filepath.Join(dir, "on-disk.webp"), "x")
	third := uniquePath(planned, filepath.Join(dir, "on-disk.webp"))
	assert.Equal(t, filepath.Join(dir, "on-disk-1.webp"), third)
}

func TestUniquePath_StatError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plainfile"), "x")

	// stat fails with ENOTDIR rather than not-exist; the name must still
	// be handed out instead of cycling suffixes forever
	dest := filepath.Join(dir, "plainfile", "x.webp")
	got := uniquePath(map[string]bool{}, dest)
	assert.Equal(t, dest, got)
}

func TestSummary_AllFailed(t *testing.T) {
	s := newSummary()
	assert.False(t, s.AllFailed(), "empty run is a success")

	s.counts(CategoryMemories).CopyFailed = 2
	assert.True(t, s.AllFailed())

	s.counts(CategoryPosts).Done = 1
	assert.False(t, s.AllFailed(), "partial success is success")
}
