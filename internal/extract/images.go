package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

var imageMIMETypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// pageImages returns the embedded images of one page from an optimized pdfcpu context.
// Images whose placement was found in the content stream carry a position and come
// first, top to bottom. Unsupported or oversized images are skipped and reported as warnings.
func (e *PDFExtractor) pageImages(doc *model.Context, page int, tops map[string]float64) ([]entity.PageImage, []string, error) {
	if page > doc.PageCount {
		return nil, nil, nil
	}
	found, err := pdfcpu.ExtractPageImages(doc, page, false)
	if err != nil {
		return nil, nil, fmt.Errorf("extract images page %d: %w", page, err)
	}

	raw := make([]model.Image, 0, len(found))
	for _, img := range found {
		if img.Reader != nil && !img.Thumb {
			raw = append(raw, img)
		}
	}
	sort.Slice(raw, func(i, j int) bool {
		yi, oki := tops[raw[i].Name]
		yj, okj := tops[raw[j].Name]
		switch {
		case oki != okj:
			return oki
		case oki && yi != yj:
			return yi < yj
		case raw[i].Name != raw[j].Name:
			return raw[i].Name < raw[j].Name
		}
		return raw[i].ObjNr < raw[j].ObjNr
	})

	var images []entity.PageImage
	var warnings []string
	for _, img := range raw {
		name := fmt.Sprintf("p%d_%s.%s", page, img.Name, img.FileType)
		mt, ok := imageMIMETypes[strings.ToLower(img.FileType)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("page %d: skipped image %s (unsupported type %s)", page, name, img.FileType))
			continue
		}
		data, err := io.ReadAll(img.Reader)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: read image %s: %v", page, name, err))
			continue
		}
		if e.cfg.MaxImageSide > 0 {
			if small, err := downscaleJPEG(data, e.cfg.MaxImageSide, e.cfg.JPEGQuality); err == nil {
				data, mt = small, "image/jpeg"
			} else {
				warnings = append(warnings, fmt.Sprintf("page %d: keep original image %s: %v", page, name, err))
			}
		}
		if e.cfg.MaxImageBytes > 0 && int64(len(data)) > e.cfg.MaxImageBytes {
			warnings = append(warnings, fmt.Sprintf("page %d: skipped image %s (%d bytes)", page, name, len(data)))
			continue
		}
		y, placed := tops[img.Name]
		images = append(images, entity.PageImage{
			Name:        name,
			MIMEType:    mt,
			Data:        data,
			Y:           y,
			HasPosition: placed,
		})
	}
	return images, warnings, nil
}

// downscaleJPEG fits the image into a maxSide square, keeping the aspect ratio,
// and re-encodes it as JPEG.
func downscaleJPEG(data []byte, maxSide, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if w > maxSide || h > maxSide {
		if w >= h {
			h = h * maxSide / w
			w = maxSide
		} else {
			w = w * maxSide / h
			h = maxSide
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
