package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/homework-solver/constants"
	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// page builds a PageRecord from lines; every line sits at x=72 unless written as "  >text" (nested).
func page(idx int, lines ...string) entity.PageRecord {
	p := entity.PageRecord{Index: idx}
	for i, l := range lines {
		x := 72.0
		if len(l) > 1 && l[0] == '>' {
			x, l = 96, l[1:]
		}
		p.Blocks = append(p.Blocks, entity.TextBlock{Text: l, X: x, Y: float64(10 * (i + 1))})
	}
	return p
}

func labels(qs []entity.MajorQuestion) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Label)
	}
	return out
}

func subLabels(q entity.MajorQuestion) []string {
	out := make([]string, 0, len(q.Subquestions))
	for _, s := range q.Subquestions {
		out = append(out, s.Label)
	}
	return out
}

func TestSegmentTwoPageHomework(t *testing.T) {
	p2 := page(2, "2. Explain why the sky is blue.")
	p2.Images = []entity.PageImage{{Name: "fig1.png", MIMEType: "image/png", Data: []byte{1}}}

	qs, err := Segment([]entity.PageRecord{
		page(1,
			"Physics Homework 3",
			"Name: ________",
			"1. Compute the following.",
			"(a) 2 + 2",
			"(b) 3 * 3",
		),
		p2,
	})
	require.NoError(t, err)
	require.Len(t, qs, 3)

	pre := qs[0]
	assert.True(t, pre.Preamble)
	assert.False(t, pre.Dispatchable())
	assert.Equal(t, entity.PreambleLabel, pre.Label)
	assert.Equal(t, "Physics Homework 3\nName: ________", pre.Title)

	q1 := qs[1]
	assert.Equal(t, "1", q1.Label)
	assert.Equal(t, 1, q1.Sequence)
	assert.Equal(t, "Compute the following.", q1.Title)
	assert.Equal(t, []string{"a", "b"}, subLabels(q1))
	assert.Equal(t, "2 + 2", q1.Subquestions[0].Prompt)
	assert.Equal(t, "1", q1.Subquestions[1].Parent)
	assert.Equal(t, []int{1}, q1.Pages)
	assert.Equal(t, constants.DispatchNotSent, q1.Status)

	q2 := qs[2]
	assert.Equal(t, "2", q2.Label)
	require.Len(t, q2.Subquestions, 1)
	assert.True(t, q2.Subquestions[0].Implicit)
	assert.Equal(t, "2", q2.Subquestions[0].Label)
	assert.Equal(t, []entity.ImageRef{{Page: 2, Index: 0}}, q2.Images)
}

func TestSegmentQuestionSpansPages(t *testing.T) {
	qs, err := Segment([]entity.PageRecord{
		page(1, "1. A long question", "(a) part one starts"),
		page(2, "and continues here", "(b) part two", "2. Next question"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, labels(qs))

	assert.Equal(t, []int{1, 2}, qs[0].Pages)
	assert.Equal(t, "part one starts\nand continues here", qs[0].Subquestions[0].Prompt)
	assert.Equal(t, []string{"a", "b"}, subLabels(qs[0]))
	assert.Equal(t, []int{2}, qs[1].Pages)
}

func TestSegmentNoQuestions(t *testing.T) {
	_, err := Segment([]entity.PageRecord{page(1, "Just some notes", "nothing numbered")})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeSegmentation))

	_, err = Segment(nil)
	assert.True(t, common.IsKind(err, common.CodeSegmentation))
}

func TestSegmentImagesAttachToNearestPrecedingLabel(t *testing.T) {
	p1 := page(1, "1. Look at the figures", "(a) first figure", "(b) second figure")
	p1.Images = []entity.PageImage{
		{Name: "a.png", Y: 25, HasPosition: true}, // between (a) at y=20 and (b) at y=30
		{Name: "b.png", Y: 35, HasPosition: true},
	}
	p2 := page(2, "continued", "2. Another")
	p2.Images = []entity.PageImage{{Name: "c.png", Y: 1, HasPosition: true}} // before any label on page 2

	qs, err := Segment([]entity.PageRecord{p1, p2})
	require.NoError(t, err)
	require.Len(t, qs, 2)

	q1 := qs[0]
	assert.Empty(t, q1.Images)
	assert.Equal(t, []entity.ImageRef{{Page: 1, Index: 0}}, q1.Subquestions[0].Images)
	assert.Equal(t, []entity.ImageRef{{Page: 1, Index: 1}, {Page: 2, Index: 0}}, q1.Subquestions[1].Images)
}

func TestSegmentLabelStyles(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		major []string
		subs  [][]string
	}{
		{
			name:  "chinese headings",
			lines: []string{"第1题 计算下列各式", "（1）1+1", "（2）2+2", "第2题 解方程"},
			major: []string{"1", "2"},
			subs:  [][]string{{"1", "2"}, {"2"}},
		},
		{
			name:  "indented numbered parts",
			lines: []string{"1. Solve", ">1. x+1=2", ">2. x+2=3", "2. Prove"},
			major: []string{"1", "2"},
			subs:  [][]string{{"1", "2"}, {"2"}},
		},
		{
			name:  "paren numbered parts under dotted majors",
			lines: []string{"1. Solve", "1) x+1=2", "2) x+2=3", "2. Prove"},
			major: []string{"1", "2"},
			subs:  [][]string{{"1", "2"}, {"2"}},
		},
		{
			name:  "compound labels",
			lines: []string{"1a. first", "1b. second", "2a. third"},
			major: []string{"1", "2"},
			subs:  [][]string{{"a", "b"}, {"a"}},
		},
		{
			name:  "question keyword",
			lines: []string{"Question 1: Kinematics", "a) speed", "b) velocity", "Question 2"},
			major: []string{"1", "2"},
			subs:  [][]string{{"a", "b"}, {"2"}},
		},
		{
			name:  "decimal sub labels and decimals in text",
			lines: []string{"1. Mechanics", "1.1 A ball is dropped", "1.5 kg of sand is added", "1.2 Find the speed"},
			major: []string{"1"},
			subs:  [][]string{{"1", "2"}},
		},
		{
			name:  "non advancing number stays text",
			lines: []string{"1. First", "3. Third", "2. not a new question"},
			major: []string{"1", "3"},
			subs:  [][]string{{"1"}, {"3"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := Segment([]entity.PageRecord{page(1, tt.lines...)})
			require.NoError(t, err)
			require.Equal(t, tt.major, labels(qs))
			for i, want := range tt.subs {
				assert.Equal(t, want, subLabels(qs[i]), "major %s", qs[i].Label)
			}
		})
	}
}

func TestSegmentDecimalInTextIsKept(t *testing.T) {
	qs, err := Segment([]entity.PageRecord{page(1, "1. Mechanics", "1.1 A ball is dropped", "1.5 kg of sand is added")})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "A ball is dropped\n1.5 kg of sand is added", qs[0].Subquestions[0].Prompt)
}

func TestSegmentIsDeterministic(t *testing.T) {
	pages := []entity.PageRecord{page(1, "intro", "1. A", "(a) x", "2. B")}
	first, err := Segment(pages)
	require.NoError(t, err)
	second, err := Segment(pages)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "a", NormalizeLabel("(A)"))
	assert.Equal(t, "a", NormalizeLabel(" a) "))
	assert.Equal(t, "1", NormalizeLabel("1."))
	assert.Equal(t, "iv", NormalizeLabel("（iv）"))
}
