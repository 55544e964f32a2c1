package tiles

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrClosed is the error of tiles requested after [Loader.Close].
var ErrClosed = errors.New("tile loader closed")

// Stats is a point-in-time view of a [Loader].
type Stats struct {
	// Live is the number of tiles handed out and not yet released.
	Live int

	// Queued is the number of live tiles waiting for a slot.
	Queued int

	// Loading is the number of downloads in flight, including downloads of
	// tiles released mid-flight.
	Loading int

	// QueueLen is the raw queue length, including released entries not yet
	// skipped.
	QueueLen int
}

// Loader hands out tile placeholders and downloads them with at most
// maxDownloading concurrent requests, starting downloads in request order.
//
// Released tiles stay in the queue until they reach its head and are then
// skipped, so releasing is O(1). A download already in flight for a released
// tile keeps its slot until it finishes; its result is discarded.
//
// All methods are safe for concurrent use.
type Loader struct {
	urlFunc URLFunc
	fetcher Fetcher
	max     int
	size    Size
	limiter *rate.Limiter
	hook    func(*Tile, State)
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tiles   map[string]*Tile
	loading map[*Tile]struct{}
	queue   *linkedlistqueue.Queue
	closed  bool

	wg sync.WaitGroup
}

// NewLoader creates a [Loader] that resolves tile URLs with urlFunc.
//
// Defaults: 5 concurrent downloads, 256x256 tiles, an [HTTPFetcher] with a 10
// second timeout, no rate limit.
func NewLoader(urlFunc URLFunc, opts ...Option) (*Loader, error) {
	if urlFunc == nil {
		return nil, errors.New("URL function cannot be nil")
	}

	cfg := &loaderConfig{
		maxDownloading: DefaultMaxDownloading,
		size:           Size{Width: DefaultTileSize, Height: DefaultTileSize},
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := cfg.fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}

	l := &Loader{
		urlFunc: urlFunc,
		fetcher: fetcher,
		max:     cfg.maxDownloading,
		size:    cfg.size,
		hook:    cfg.hook,
		logger:  logger,
		tiles:   make(map[string]*Tile),
		loading: make(map[*Tile]struct{}),
		queue:   linkedlistqueue.New(),
	}
	if cfg.limit > 0 {
		l.limiter = rate.NewLimiter(cfg.limit, cfg.burst)
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// GetTile returns the placeholder for the tile at c and zoom without
// blocking. If a live tile with the same URL exists, that tile is returned;
// otherwise a new placeholder is queued for download.
//
// After Close, GetTile returns an abandoned tile whose Err is [ErrClosed].
func (l *Loader) GetTile(c Coord, zoom int) *Tile {
	tileURL := l.urlFunc(c, zoom)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		t := newTile(uuid.NewString(), tileURL, c, zoom, l.size)
		t.set(StateErrored, nil, ErrClosed)
		t.set(StateAbandoned, nil, nil)
		return t
	}

	if existing, ok := l.tiles[tileURL]; ok {
		l.logger.Debug("returning existing tile", "url", tileURL, "tile_id", existing.id)
		return existing
	}

	t := newTile(uuid.NewString(), tileURL, c, zoom, l.size)
	l.tiles[tileURL] = t
	l.queue.Enqueue(t)
	l.notify(t, StateQueued)
	l.logger.Debug("queued tile", "url", tileURL, "tile_id", t.id)

	l.processQueue()
	return t
}

// ReleaseTile tells the loader t is no longer needed. A queued tile is
// skipped when it reaches the head of the queue; a loading tile's result is
// discarded; a loaded tile drops its image. t moves to ABANDONED.
//
// Releasing a tile twice is a no-op. Releasing a placeholder that is not the
// live tile for its URL is logged and otherwise ignored.
func (l *Loader) ReleaseTile(t *Tile) {
	if t == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	live, ok := l.tiles[t.key]
	if !ok {
		return
	}
	if live != t {
		l.logger.Warn("released tile does not match live tile",
			"url", t.url,
			"released_id", t.id,
			"live_id", live.id,
		)
		return
	}

	delete(l.tiles, t.key)
	if t.set(StateAbandoned, nil, nil) {
		l.notify(t, StateAbandoned)
	}
	l.logger.Debug("released tile", "url", t.url, "tile_id", t.id)
}

// Stats returns current counts.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Live:     len(l.tiles),
		Loading:  len(l.loading),
		QueueLen: l.queue.Size(),
	}
	for _, t := range l.tiles {
		if t.State() == StateQueued {
			s.Queued++
		}
	}
	return s
}

// Close cancels in-flight downloads, abandons queued tiles and waits for
// download goroutines to exit. Safe to call more than once.
func (l *Loader) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cancel()
		for !l.queue.Empty() {
			v, _ := l.queue.Dequeue()
			t := v.(*Tile)
			if l.tiles[t.key] == t {
				delete(l.tiles, t.key)
				if t.set(StateAbandoned, nil, nil) {
					l.notify(t, StateAbandoned)
				}
			}
		}
	}
	l.mu.Unlock()

	l.wg.Wait()
	if hf, ok := l.fetcher.(*HTTPFetcher); ok {
		hf.Close()
	}
}

// processQueue starts downloads while slots are free. Caller holds l.mu.
func (l *Loader) processQueue() {
	for !l.queue.Empty() && len(l.loading) < l.max {
		v, _ := l.queue.Dequeue()
		t := v.(*Tile)

		if l.tiles[t.key] != t {
			l.logger.Debug("skipping released tile", "url", t.url, "tile_id", t.id)
			continue
		}

		l.loading[t] = struct{}{}
		t.set(StateLoading, nil, nil)
		l.notify(t, StateLoading)

		l.wg.Add(1)
		go l.download(t)
	}
}

func (l *Loader) download(t *Tile) {
	defer l.wg.Done()

	if l.limiter != nil {
		if err := l.limiter.Wait(l.ctx); err != nil {
			l.finish(t, nil, err)
			return
		}
	}

	image, err := l.fetcher.Fetch(l.ctx, t.url)
	l.finish(t, image, err)
}

// finish records a download result, frees the slot and refills it.
func (l *Loader) finish(t *Tile, image []byte, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.loading, t)

	switch {
	case l.closed:
		if l.tiles[t.key] == t {
			delete(l.tiles, t.key)
		}
		if t.set(StateAbandoned, nil, nil) {
			l.notify(t, StateAbandoned)
		}
	case err != nil:
		if t.set(StateErrored, nil, err) {
			l.notify(t, StateErrored)
			l.logger.Warn("tile load failed", "url", t.url, "tile_id", t.id, "error", err)
		}
	default:
		if t.set(StateLoaded, image, nil) {
			l.notify(t, StateLoaded)
			l.logger.Debug("tile loaded", "url", t.url, "tile_id", t.id, "bytes", len(image))
		} else {
			l.logger.Debug("discarding released tile result", "url", t.url, "tile_id", t.id)
		}
	}

	if !l.closed {
		l.processQueue()
	}
}

// notify calls the transition hook. Caller holds l.mu.
func (l *Loader) notify(t *Tile, s State) {
	if l.hook != nil {
		l.hook(t, s)
	}
}
