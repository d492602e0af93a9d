package segment

import (
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// anyDelim marks a major question opened by a compound label such as "1a.",
// which says nothing about how its siblings are numbered.
const anyDelim = "*"

// Rules tunes the layout heuristics.
type Rules struct {
	// IndentTolerance is how far right of its major label a numbered line
	// must start to be read as a nested subquestion instead of a new major question.
	IndentTolerance float64
}

// DefaultRules returns the heuristics used by Segment.
func DefaultRules() Rules {
	return Rules{IndentTolerance: 8}
}

// Segmenter rebuilds the question hierarchy from extracted pages. It performs no I/O.
type Segmenter struct {
	rules Rules
}

func NewSegmenter(rules Rules) *Segmenter {
	if rules.IndentTolerance <= 0 {
		rules.IndentTolerance = DefaultRules().IndentTolerance
	}
	return &Segmenter{rules: rules}
}

// Segment runs a Segmenter with DefaultRules.
func Segment(pages []entity.PageRecord) ([]entity.MajorQuestion, error) {
	return NewSegmenter(DefaultRules()).Segment(pages)
}

// element is one text block or image in reading order.
type element struct {
	page  int
	block *entity.TextBlock
	image int // index into the page's images when block is nil
	y     float64
}

// Segment returns the preamble (when present) followed by major questions in source order.
// A SEGMENTATION error is returned when no major question label is found.
func (s *Segmenter) Segment(pages []entity.PageRecord) ([]entity.MajorQuestion, error) {
	b := &builder{rules: s.rules}
	for _, el := range readingOrder(pages) {
		if el.block == nil {
			b.attachImage(entity.ImageRef{Page: el.page, Index: el.image})
			continue
		}
		b.line(el.page, el.block)
	}
	return b.finish()
}

func readingOrder(pages []entity.PageRecord) []element {
	var out []element
	for _, p := range pages {
		els := make([]element, 0, len(p.Blocks)+len(p.Images))
		for i := range p.Blocks {
			els = append(els, element{page: p.Index, block: &p.Blocks[i], y: p.Blocks[i].Y})
		}
		var trailing []element
		for i, img := range p.Images {
			el := element{page: p.Index, image: i, y: img.Y}
			if img.HasPosition {
				els = append(els, el)
			} else {
				trailing = append(trailing, el)
			}
		}
		// Stable: blocks keep extraction order, positioned images slot in after text at the same height.
		sort.SliceStable(els, func(i, j int) bool { return els[i].y < els[j].y })
		out = append(out, els...)
		out = append(out, trailing...)
	}
	return out
}

type builder struct {
	rules    Rules
	preamble entity.MajorQuestion
	majors   []entity.MajorQuestion

	cur         *entity.MajorQuestion
	curIndent   float64
	curNumber   int
	curDelim    string
	curSub      int // index into cur.Subquestions, -1 while in the stem
	hasPreamble bool
}

func (b *builder) line(page int, blk *entity.TextBlock) {
	text := strings.TrimSpace(blk.Text)
	if text == "" {
		return
	}

	if m, ok := matchMajor(text); ok && m.strong {
		b.openMajor(page, blk.X, m)
		return
	}
	if m, ok := matchCompoundSub(text); ok && m.decimal {
		// "1.2" only counts as the next part of the open question 1.
		if b.cur != nil && b.cur.Label == m.major && m.label == strconv.Itoa(len(b.cur.Subquestions)+1) {
			b.openSub(page, m.label, m.rest)
			return
		}
	} else if ok {
		if b.cur == nil || b.cur.Label != m.major {
			n := atoiOr(m.major, b.curNumber+1)
			if b.cur == nil || n > b.curNumber {
				b.openMajor(page, blk.X, majorMatch{label: m.major, number: n, delim: anyDelim})
			}
		}
		if b.cur != nil && b.cur.Label == m.major {
			b.openSub(page, m.label, m.rest)
			return
		}
	}
	if m, ok := matchMajor(text); ok {
		switch {
		case b.cur == nil:
			b.openMajor(page, blk.X, m)
			return
		case blk.X > b.curIndent+b.rules.IndentTolerance, b.curDelim != anyDelim && m.delim != b.curDelim:
			// Nested list: deeper indent, a different delimiter, or numbers under a "Question N" heading.
			b.openSub(page, m.label, m.rest)
			return
		case m.number > b.curNumber:
			b.openMajor(page, blk.X, m)
			return
		}
		// A numbered line that does not advance the sequence is body text.
	}
	if b.cur != nil {
		if m, ok := matchSub(text); ok && !b.hasSub(m.label) {
			b.openSub(page, m.label, m.rest)
			return
		}
	}
	b.appendText(page, text)
}

func (b *builder) openMajor(page int, x float64, m majorMatch) {
	b.majors = append(b.majors, entity.MajorQuestion{
		Sequence: len(b.majors) + 1,
		Label:    m.label,
		Title:    m.rest,
		Pages:    []int{page},
		Status:   constants.DispatchNotSent,
	})
	b.cur = &b.majors[len(b.majors)-1]
	b.curIndent = x
	b.curNumber = m.number
	b.curDelim = m.delim
	b.curSub = -1
}

func (b *builder) openSub(page int, label, rest string) {
	if b.hasSub(label) {
		b.appendText(page, rest)
		return
	}
	b.cur.Subquestions = append(b.cur.Subquestions, entity.Subquestion{
		Parent: b.cur.Label,
		Label:  label,
		Prompt: rest,
	})
	b.curSub = len(b.cur.Subquestions) - 1
	b.touch(page)
}

func (b *builder) hasSub(label string) bool {
	if b.cur == nil {
		return false
	}
	for _, s := range b.cur.Subquestions {
		if s.Label == label {
			return true
		}
	}
	return false
}

func (b *builder) appendText(page int, text string) {
	if text == "" {
		return
	}
	switch {
	case b.cur == nil:
		b.preamble.Title = joinLine(b.preamble.Title, text)
		b.preamble.Pages = addPage(b.preamble.Pages, page)
		b.hasPreamble = true
	case b.curSub >= 0:
		sq := &b.cur.Subquestions[b.curSub]
		sq.Prompt = joinLine(sq.Prompt, text)
		b.touch(page)
	default:
		b.cur.Title = joinLine(b.cur.Title, text)
		b.touch(page)
	}
}

// attachImage gives the image to the unit opened by the nearest preceding label.
func (b *builder) attachImage(ref entity.ImageRef) {
	switch {
	case b.cur == nil:
		b.preamble.Images = append(b.preamble.Images, ref)
		b.preamble.Pages = addPage(b.preamble.Pages, ref.Page)
		b.hasPreamble = true
	case b.curSub >= 0:
		sq := &b.cur.Subquestions[b.curSub]
		sq.Images = append(sq.Images, ref)
		b.touch(ref.Page)
	default:
		b.cur.Images = append(b.cur.Images, ref)
		b.touch(ref.Page)
	}
}

func (b *builder) touch(page int) {
	b.cur.Pages = addPage(b.cur.Pages, page)
}

func (b *builder) finish() ([]entity.MajorQuestion, error) {
	if len(b.majors) == 0 {
		return nil, common.SegmentationError("no major question labels found", nil)
	}
	for i := range b.majors {
		m := &b.majors[i]
		if len(m.Subquestions) == 0 {
			m.Subquestions = []entity.Subquestion{{
				Parent:   m.Label,
				Label:    m.Label,
				Prompt:   m.Title,
				Implicit: true,
			}}
		}
	}
	if !b.hasPreamble {
		return b.majors, nil
	}
	b.preamble.Label = entity.PreambleLabel
	b.preamble.Preamble = true
	b.preamble.Status = constants.DispatchNotSent
	return append([]entity.MajorQuestion{b.preamble}, b.majors...), nil
}

func joinLine(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func addPage(pages []int, p int) []int {
	if n := len(pages); n > 0 && pages[n-1] == p {
		return pages
	}
	for _, x := range pages {
		if x == p {
			return pages
		}
	}
	return append(pages, p)
}

func atoiOr(s string, def int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}
