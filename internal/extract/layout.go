package extract

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// affine is a PDF transformation matrix [a b c d e f].
type affine struct {
	a, b, c, d, e, f float64
}

var identity = affine{a: 1, d: 1}

// then returns the transform that applies m first and t second.
func (m affine) then(t affine) affine {
	return affine{
		a: m.a*t.a + m.b*t.c,
		b: m.a*t.b + m.b*t.d,
		c: m.c*t.a + m.d*t.c,
		d: m.c*t.b + m.d*t.d,
		e: m.e*t.a + m.f*t.c + t.e,
		f: m.e*t.b + m.f*t.d + t.f,
	}
}

func (m affine) apply(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.e, m.b*x + m.d*y + m.f
}

// imageTops maps the resource name of every image XObject painted directly by the
// page content to the top edge of its first placement. Values use the same
// top-down units as text blocks. Images drawn inside form XObjects are not found.
func imageTops(p pdf.Page) (tops map[string]float64) {
	tops = map[string]float64{}
	strm := p.V.Key("Contents")
	if strm.Kind() == pdf.Null {
		return tops
	}
	xobjects := p.Resources().Key("XObject")

	// A malformed operator ends the walk; placements seen so far are kept.
	defer func() { _ = recover() }()

	ctm := identity
	var saved []affine
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "q":
			saved = append(saved, ctm)
		case "Q":
			if len(saved) > 0 {
				ctm = saved[len(saved)-1]
				saved = saved[:len(saved)-1]
			}
		case "cm":
			if len(args) != 6 {
				return
			}
			m := affine{args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64(), args[4].Float64(), args[5].Float64()}
			ctm = m.then(ctm)
		case "Do":
			if len(args) != 1 {
				return
			}
			name := args[0].Name()
			if _, seen := tops[name]; seen || xobjects.Key(name).Key("Subtype").Name() != "Image" {
				return
			}
			// images fill the unit square of the current matrix
			top := math.Inf(-1)
			for _, corner := range [4][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				_, y := ctm.apply(corner[0], corner[1])
				top = math.Max(top, y)
			}
			tops[name] = -top
		}
	})
	return tops
}
