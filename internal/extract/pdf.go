package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// Config for the PDF extractor.
type Config struct {
	MaxPages      int   // 0 = no cap
	MaxImageBytes int64 // images above this size are dropped; 0 = no cap
	MaxImageSide  int   // images are downscaled to fit this square; 0 = keep size
	JPEGQuality   int   // quality of downscaled images
	SkipImages    bool
}

// PDFExtractor reads text rows with ledongthuc/pdf and images with pdfcpu.
type PDFExtractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewPDFExtractor(cfg Config, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 80
	}
	return &PDFExtractor{cfg: cfg, logger: logger}
}

// Extract implements Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]entity.PageRecord, error) {
	start := time.Now()
	st, err := os.Stat(path)
	if err != nil {
		return nil, common.ExtractionError("unreadable file", err)
	}
	if st.IsDir() || st.Size() == 0 {
		return nil, common.ExtractionError("not a pdf file: "+path, nil)
	}

	// One pdfcpu parse validates the file and serves the images of every page.
	doc, err := readContext(path)
	if err != nil {
		return nil, common.ExtractionError("corrupted pdf", err)
	}
	if doc.PageCount == 0 {
		return nil, common.ExtractionError("pdf has zero pages", nil)
	}

	pages, tops, err := e.readText(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, common.ExtractionError("pdf has zero pages", nil)
	}

	if !e.cfg.SkipImages {
		for i := range pages {
			if err := ctx.Err(); err != nil {
				return nil, common.ExtractionError("extraction cancelled", err)
			}
			imgs, warns, err := e.pageImages(doc, pages[i].Index, tops[i])
			if err != nil {
				e.logger.Warn("extract.images.failed", "path", path, "page", pages[i].Index, "err", err)
				continue
			}
			for _, w := range warns {
				e.logger.Warn("extract.images.skipped", "path", path, "detail", w)
			}
			pages[i].Images = imgs
		}
	}

	e.logger.Debug("extract.done",
		"path", path,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

// readContext parses, validates (relaxed) and optimizes the file with pdfcpu.
func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTIMAGES
	return api.ReadValidateAndOptimize(f, conf)
}

// readText returns the text of every page along with the top edge of each image drawn on it.
func (e *PDFExtractor) readText(ctx context.Context, path string) (pages []entity.PageRecord, tops []map[string]float64, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages, tops = nil, nil
			err = common.ExtractionError("malformed pdf content", fmt.Errorf("%v", r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, common.ExtractionError("open pdf", err)
	}
	defer func() { _ = f.Close() }()

	n := r.NumPage()
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		e.logger.Warn("extract.pages.capped", "path", path, "pages", n, "max_pages", e.cfg.MaxPages)
		n = e.cfg.MaxPages
	}

	pages = make([]entity.PageRecord, 0, n)
	tops = make([]map[string]float64, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, common.ExtractionError("extraction cancelled", err)
		}
		rec := entity.PageRecord{Index: i}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, rec)
			tops = append(tops, nil)
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			e.logger.Warn("extract.page.text_failed", "path", path, "page", i, "err", err)
		} else {
			rec.Blocks = rowsToBlocks(rows)
		}
		pages = append(pages, rec)
		tops = append(tops, imageTops(p))
	}
	return pages, tops, nil
}
