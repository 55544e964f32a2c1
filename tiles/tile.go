package tiles

import (
	"fmt"
	"sync"
)

// State is the lifecycle stage of a [Tile].
type State int

const (
	// StateQueued means the tile waits for a download slot.
	StateQueued State = iota

	// StateLoading means the download is in flight.
	StateLoading

	// StateLoaded means the image is available.
	StateLoaded

	// StateErrored means the download failed. The tile stays live until
	// released.
	StateErrored

	// StateAbandoned means the tile was released or the loader closed.
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "QUEUED"
	case StateLoading:
		return "LOADING"
	case StateLoaded:
		return "LOADED"
	case StateErrored:
		return "ERRORED"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether the tile will not change again on its own.
func (s State) terminal() bool {
	return s == StateLoaded || s == StateErrored || s == StateAbandoned
}

// Coord is a tile position at some zoom level.
type Coord struct {
	X int
	Y int
}

// Size is a tile's pixel dimensions.
type Size struct {
	Width  int
	Height int
}

// Tile is a placeholder handed out by [Loader.GetTile]. Its image arrives
// asynchronously; wait on Done or poll State.
//
// All methods are safe for concurrent use.
type Tile struct {
	id    string
	key   string
	url   string
	coord Coord
	zoom  int
	size  Size

	mu    sync.Mutex
	state State
	image []byte
	err   error
	done  chan struct{}
}

func newTile(id, url string, coord Coord, zoom int, size Size) *Tile {
	return &Tile{
		id:    id,
		key:   url,
		url:   url,
		coord: coord,
		zoom:  zoom,
		size:  size,
		state: StateQueued,
		done:  make(chan struct{}),
	}
}

// ID returns the unique request ID of this placeholder.
func (t *Tile) ID() string { return t.id }

// Key identifies the tile's content. Two live tiles never share a key.
func (t *Tile) Key() string { return t.key }

// URL returns the download URL.
func (t *Tile) URL() string { return t.url }

// Coord returns the tile coordinate.
func (t *Tile) Coord() Coord { return t.coord }

// Zoom returns the zoom level.
func (t *Tile) Zoom() int { return t.zoom }

// Size returns the placeholder's pixel size.
func (t *Tile) Size() Size { return t.size }

// State returns the current lifecycle stage.
func (t *Tile) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Image returns the downloaded bytes, or nil unless the tile is loaded.
func (t *Tile) Image() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.image
}

// Err returns the download error of an errored tile.
func (t *Tile) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the tile reaches LOADED, ERRORED or ABANDONED.
func (t *Tile) Done() <-chan struct{} {
	return t.done
}

// set moves the tile to state. Returns false if the tile was already
// abandoned, in which case nothing changes.
func (t *Tile) set(state State, image []byte, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateAbandoned {
		return false
	}
	wasTerminal := t.state.terminal()

	t.state = state
	switch state {
	case StateLoaded:
		t.image = image
	case StateErrored:
		t.err = err
	case StateAbandoned:
		t.image = nil
	}

	if state.terminal() && !wasTerminal {
		close(t.done)
	}
	return true
}
