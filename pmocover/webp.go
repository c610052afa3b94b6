package pmocover

import (
	"bytes"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// squared inscrit img dans un carré transparent de côté size, centré et
// sans déformation.
func squared(img image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w == 0 || h == 0 {
		return dst
	}
	longest := max(w, h)
	nw, nh := max(1, w*size/longest), max(1, h*size/longest)

	at := image.Rect(0, 0, nw, nh).Add(image.Pt((size-nw)/2, (size-nh)/2))
	xdraw.CatmullRom.Scale(dst, at, img, src, xdraw.Over, nil)
	return dst
}

func (c *Cache) variantPath(pk string, size int) string {
	return filepath.Join(c.dir, pk+"."+strconv.Itoa(size)+".webp")
}

// generateVariant produit, ou relit, la déclinaison carrée de pk en size px.
func (c *Cache) generateVariant(pk string, size int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.variantPath(pk, size)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	f, err := os.Open(c.origPath(pk))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := webp.Decode(f)
	if err != nil {
		return nil, err
	}

	buf, err := encodeWebP(squared(img, size))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return nil, err
	}
	return buf, nil
}
