package tiles

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// URLFunc maps a tile coordinate and zoom to the URL it is downloaded from.
type URLFunc func(c Coord, zoom int) string

// SelectInstance picks which of n backing instances serves the tile at (x,
// y): round(x*sqrt(n) + y) mod n, as a non-negative index. Adjacent tiles
// land on different instances without any coordination.
//
// Returns 0 when n < 2.
func SelectInstance(x, y, n int) int {
	if n < 2 {
		return 0
	}
	v := int(math.Round(float64(x)*math.Sqrt(float64(n)) + float64(y)))
	idx := v % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// InstanceURLFunc returns a [URLFunc] that spreads tiles over hosts with
// [SelectInstance]. URLs take the form
//
//	http://<host><path>?tile-size=<px>&x=<x>&y=<y>&z=<zoom>
//
// Returns an error if hosts is empty or tileSize is not positive.
func InstanceURLFunc(hosts []string, path string, tileSize int) (URLFunc, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("at least one tile host is required")
	}
	if tileSize < 1 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	pool := append([]string(nil), hosts...)
	size := strconv.Itoa(tileSize)

	return func(c Coord, zoom int) string {
		q := url.Values{}
		q.Set("x", strconv.Itoa(c.X))
		q.Set("y", strconv.Itoa(c.Y))
		q.Set("z", strconv.Itoa(zoom))
		q.Set("tile-size", size)
		u := url.URL{
			Scheme:   "http",
			Host:     pool[SelectInstance(c.X, c.Y, len(pool))],
			Path:     path,
			RawQuery: q.Encode(),
		}
		return u.String()
	}, nil
}
