// Package preview renders thumbnail images for cues in the background. A
// fixed worker pool extracts a single frame per cue with ffmpeg and caches it
// on disk; the source media is watched so an edited file invalidates its
// cached thumbnail.
package preview

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"stagecue/internal/logging"
	"stagecue/internal/services"
	"stagecue/internal/show"
)

var commandContext = exec.CommandContext

// Token identifies one preview request.
type Token string

// Result is delivered when a request completes. Superseded requests deliver
// nothing: only the newest request per cue produces a result.
type Result struct {
	Token Token
	CueID string
	Path  string
	Err   error
}

// Options configures a generator.
type Options struct {
	Workers      int
	FFmpegBinary string
	CacheDir     string
	Logger       *slog.Logger
	Results      chan<- Result
}

type job struct {
	token  Token
	cue    show.Cue
	ctx    context.Context
	cancel context.CancelFunc
}

// Generator is the preview worker pool.
type Generator struct {
	opts   Options
	logger *slog.Logger

	jobs    chan job
	wg      sync.WaitGroup
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	started bool
	// latest maps cue ID to the newest request token; inflight holds the
	// cancel func for the job currently running per cue.
	latest   map[string]Token
	inflight map[string]context.CancelFunc
	// sources maps media path to cached thumbnail path; watched tracks
	// directories already added to the watcher.
	sources map[string]string
	watched map[string]struct{}
}

// New constructs a generator. Call Start before submitting requests.
func New(opts Options) *Generator {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	return &Generator{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "preview"),
		jobs:     make(chan job, 64),
		latest:   make(map[string]Token),
		inflight: make(map[string]context.CancelFunc),
		sources:  make(map[string]string),
		watched:  make(map[string]struct{}),
	}
}

// Start launches the worker pool and the cache invalidation watcher. Workers
// exit when ctx is cancelled; Wait blocks until they are gone.
func (g *Generator) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrExtraction, "preview", "start", "create media watcher", err)
	}
	g.watcher = watcher

	for i := 0; i < g.opts.Workers; i++ {
		g.wg.Add(1)
		go g.worker(ctx)
	}
	g.wg.Add(1)
	go g.watch(ctx)

	g.mu.Lock()
	g.started = true
	g.mu.Unlock()

	g.logger.Info("preview workers started", logging.Int("workers", g.opts.Workers))
	return nil
}

// Wait blocks until all workers have exited.
func (g *Generator) Wait() {
	g.wg.Wait()
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
}

// Request queues thumbnail generation for the cue and returns the request
// token. A newer request for the same cue supersedes any older in-flight one:
// the old job is cancelled and its result discarded. Request never blocks:
// when the queue is full the oldest queued request is evicted, and a
// generator whose pool never started refuses requests outright.
func (g *Generator) Request(cue show.Cue) (Token, error) {
	if cue.Kind != show.KindVideo && cue.Kind != show.KindImage {
		return "", services.Wrap(services.ErrUnsupported, "preview", "request",
			fmt.Sprintf("no preview for %s cues", cue.Kind), nil)
	}

	token := Token(uuid.New().String())
	ctx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		cancel()
		return "", services.Wrap(services.ErrExtraction, "preview", "request",
			"worker pool not started", nil)
	}
	g.latest[cue.ID] = token
	if prev, ok := g.inflight[cue.ID]; ok {
		prev()
	}
	g.inflight[cue.ID] = cancel
	g.mu.Unlock()

	j := job{token: token, cue: cue, ctx: ctx, cancel: cancel}
	select {
	case g.jobs <- j:
		return token, nil
	default:
	}

	// Queue full: evict the oldest queued request so the newest one wins.
	select {
	case old := <-g.jobs:
		g.discard(old)
		g.logger.Warn("preview queue full, dropped oldest request",
			logging.String(logging.FieldCueID, old.cue.ID))
	default:
	}
	select {
	case g.jobs <- j:
		return token, nil
	default:
		// The evicted slot was refilled before we could use it. Drop
		// this request rather than block the caller.
		g.discard(j)
		return "", services.Wrap(services.ErrExtraction, "preview", "request",
			"job queue full", nil)
	}
}

// discard cancels a job that will never run and clears its bookkeeping,
// unless a newer request for the same cue has already taken over.
func (g *Generator) discard(j job) {
	j.cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latest[j.cue.ID] == j.token {
		delete(g.latest, j.cue.ID)
		delete(g.inflight, j.cue.ID)
	}
}

func (g *Generator) worker(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-g.jobs:
			g.run(j)
		}
	}
}

func (g *Generator) run(j job) {
	defer j.cancel()
	if g.superseded(j) {
		return
	}

	path, err := g.extract(j.ctx, j.cue)

	// Re-check after the extraction: a request that arrived while ffmpeg
	// was running wins, and this result is discarded.
	if g.superseded(j) {
		return
	}
	g.mu.Lock()
	delete(g.inflight, j.cue.ID)
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("thumbnail extraction failed",
			logging.String(logging.FieldCueID, j.cue.ID),
			logging.Error(err),
		)
	}
	if g.opts.Results != nil {
		g.opts.Results <- Result{Token: j.token, CueID: j.cue.ID, Path: path, Err: err}
	}
}

func (g *Generator) superseded(j job) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest[j.cue.ID] != j.token
}

// extract produces the thumbnail file, reusing the cache when the source is
// unchanged since the last extraction.
func (g *Generator) extract(ctx context.Context, cue show.Cue) (string, error) {
	info, err := os.Stat(cue.MediaPath)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "preview", "extract",
			fmt.Sprintf("media path %q", cue.MediaPath), err)
	}

	target := g.cachePath(cue, info.ModTime())
	if _, err := os.Stat(target); err == nil {
		g.remember(cue.MediaPath, target)
		return target, nil
	}
	if err := os.MkdirAll(g.opts.CacheDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExtraction, "preview", "extract", "create cache directory", err)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if cue.Kind == show.KindVideo && cue.StartOffset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", cue.StartOffset))
	}
	args = append(args,
		"-i", cue.MediaPath,
		"-frames:v", "1",
		"-vf", "scale=320:-1",
		"-q:v", "4",
		target,
	)

	cmd := commandContext(ctx, g.opts.FFmpegBinary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrExtraction, "preview", "extract",
			fmt.Sprintf("ffmpeg: %s", firstLine(string(out))), err)
	}

	g.remember(cue.MediaPath, target)
	return target, nil
}

func (g *Generator) cachePath(cue show.Cue, modTime time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%.3f", cue.MediaPath, modTime.UnixNano(), cue.StartOffset)
	return filepath.Join(g.opts.CacheDir, fmt.Sprintf("%s-%x.jpg", cue.ID, h.Sum64()))
}

// remember records the source-to-thumbnail mapping and watches the source
// directory so edits invalidate the cache entry.
func (g *Generator) remember(source, target string) {
	g.mu.Lock()
	g.sources[source] = target
	dir := filepath.Dir(source)
	_, watching := g.watched[dir]
	if !watching {
		g.watched[dir] = struct{}{}
	}
	g.mu.Unlock()

	if !watching && g.watcher != nil {
		if err := g.watcher.Add(dir); err != nil {
			g.logger.Warn("cannot watch media directory",
				logging.String("dir", dir),
				logging.Error(err),
			)
		}
	}
}

func (g *Generator) watch(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			g.invalidate(ev.Name)
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn("media watcher error", logging.Error(err))
		}
	}
}

func (g *Generator) invalidate(source string) {
	g.mu.Lock()
	target, ok := g.sources[source]
	if ok {
		delete(g.sources, source)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("cannot remove stale thumbnail",
			logging.String("path", target),
			logging.Error(err),
		)
		return
	}
	g.logger.Info("thumbnail invalidated", logging.String("source", source))
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
