package mockfleet

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"strconv"
)

const (
	defaultTileSize = 256
	maxTileSize     = 1024

	// baseZoomSize is the width in pixels of the whole set at zoom 0.
	baseZoomSize = 400
	iterations   = 256
)

var (
	palette = []color.RGBA{
		{0x00, 0x99, 0x25, 0xff},
		{0x33, 0x69, 0xe8, 0xff},
		{0xd5, 0x0f, 0x25, 0xff},
		{0xee, 0xb2, 0x11, 0xff},
		{0xff, 0xff, 0xff, 0xff},
	}
	insideColor = color.RGBA{0x66, 0x66, 0x66, 0xff}
)

// RenderTile renders the Mandelbrot tile at (x, y) for zoom z as PNG.
// size must be a power of two no larger than 1024.
func RenderTile(x, y, z, size int) ([]byte, error) {
	if size < 1 || size > maxTileSize || size&(size-1) != 0 {
		return nil, fmt.Errorf("tile size must be a power of two up to %d, got %d", maxTileSize, size)
	}
	if z < 0 || z > 30 {
		return nil, fmt.Errorf("zoom must be between 0 and 30, got %d", z)
	}

	// width in pixels of the whole set at zoom z
	worldSize := baseZoomSize << z
	scale := 1 / float64(worldSize)
	originX, originY := x*size, y*size

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			re := float64(originX+px)*scale*3.5 - 2.5
			im := float64(originY+py)*scale*3.5 - 1.75
			img.SetRGBA(px, py, pixelColor(complex(re, im)))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pixelColor maps the escape time of c onto the palette with smooth
// interpolation between stops.
func pixelColor(c complex128) color.RGBA {
	z := complex(0, 0)
	for i := 0; i < iterations; i++ {
		z = z*z + c
		r, im := real(z), imag(z)
		if r*r+im*im >= 4 {
			v := float64(i) + 1 - math.Log2(math.Log(math.Hypot(r, im)))
			v = math.Max(v, 0) / 8
			lo := int(v) % len(palette)
			hi := (lo + 1) % len(palette)
			return blend(palette[lo], palette[hi], v-math.Floor(v))
		}
	}
	return insideColor
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

func handleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, _ := strconv.Atoi(q.Get("x"))
	y, _ := strconv.Atoi(q.Get("y"))
	z, _ := strconv.Atoi(q.Get("z"))
	size, err := strconv.Atoi(q.Get("tile-size"))
	if err != nil {
		size = defaultTileSize
	}

	b, err := RenderTile(x, y, z, size)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}
