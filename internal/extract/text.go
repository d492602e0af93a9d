package extract

import (
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// rowsToBlocks converts ledongthuc rows (top of page first) into text blocks.
// Glyph runs separated by a visible gap are joined with a space.
func rowsToBlocks(rows pdf.Rows) []entity.TextBlock {
	blocks := make([]entity.TextBlock, 0, len(rows))
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}
		var b strings.Builder
		x := math.Inf(1)
		prevEnd := math.Inf(-1)
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			if t.X < x {
				x = t.X
			}
			gap := t.X - prevEnd
			if b.Len() > 0 && gap > spaceGap(t.FontSize) && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			prevEnd = t.X + t.W
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		blocks = append(blocks, entity.TextBlock{
			Text: text,
			X:    x,
			// PDF space grows upwards; blocks use top-down positions.
			Y: -float64(row.Position),
		})
	}
	return blocks
}

func spaceGap(fontSize float64) float64 {
	if fontSize <= 0 {
		return 2
	}
	return fontSize * 0.25
}
