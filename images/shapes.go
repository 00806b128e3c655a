// Package images - Box geometry for detection training.
package images

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/mat"
)

// Rect is an axis-aligned box in corner coordinates (x1, y1, x2, y2).
//
// Coordinates may be absolute pixels or normalized to [0, 1]. Inverted boxes
// (X2 < X1 or Y2 < Y1) are tolerated and treated as having zero extent on the
// inverted axis.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent, clamped at 0.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent, clamped at 0.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box. Degenerate and inverted boxes have area 0.
func Area(r Rect) float32 {
	return r.Width() * r.Height()
}

// L1 returns the sum of absolute coordinate differences between two boxes.
func L1(r, o Rect) float32 {
	return math32.Abs(r.X1-o.X1) + math32.Abs(r.Y1-o.Y1) + math32.Abs(r.X2-o.X2) + math32.Abs(r.Y2-o.Y2)
}

// intersectionUnion returns the overlap area of two boxes and the area they
// cover together.
//
// The overlap rectangle starts at the maximum of the two top-left corners and
// ends at the minimum of the two bottom-right corners. When it is empty on
// either axis the intersection is 0. The union follows inclusion-exclusion:
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
func intersectionUnion(r, o Rect) (inter, union float32) {
	iw := math32.Max(0, math32.Min(r.X2, o.X2)-math32.Max(r.X1, o.X1))
	ih := math32.Max(0, math32.Min(r.Y2, o.Y2)-math32.Max(r.Y1, o.Y1))
	inter = iw * ih
	union = Area(r) + Area(o) - inter
	return inter, union
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU is a number between 0.0 and 1.0 answering "how much do these two boxes
// overlap?":
//
//	IoU = Area of Intersection / Area of Union
//
//	- 1.0 means the boxes are identical.
//	- 0.0 means the boxes do not overlap (or both are degenerate).
//
// Arguments:
//   - r: The first box.
//   - o: The box to compare against.
//
// Returns:
//   - The IoU score in [0, 1]. 0 when the union is empty.
//
// Example:
//
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	inter, union := intersectionUnion(r, o)
	if union <= 0 {
		return 0
	}
	return inter / union
}

// enclosingArea returns the area of the smallest box containing both boxes.
func enclosingArea(r, o Rect) float32 {
	w := math32.Max(0, math32.Max(r.X2, o.X2)-math32.Min(r.X1, o.X1))
	h := math32.Max(0, math32.Max(r.Y2, o.Y2)-math32.Min(r.Y1, o.Y1))
	return w * h
}

// generalized combines an IoU score with the enclosing-box penalty.
//
// The penalty is only applied when the enclosing box is strictly larger than
// the union so that rounding can never lift GIoU above IoU.
func generalized(iou, union, enclosing float32) float32 {
	if enclosing <= 0 || enclosing <= union {
		return iou
	}
	return iou - (enclosing-union)/enclosing
}

// CalculateGIoU returns the Generalized IoU of two boxes.
//
// GIoU subtracts from the IoU the fraction of the smallest enclosing box that
// is covered by neither box:
//
//	GIoU = IoU - (Area(C) - Union(A, B)) / Area(C)
//
// It lies in [-1, 1], equals 1 for identical non-degenerate boxes and is
// negative for disjoint boxes, which gives a useful signal even when the
// boxes do not overlap. When the enclosing box has no area the result is the
// plain IoU (0), so degenerate model output never produces NaN.
//
// Arguments:
//   - r: The first box.
//   - o: The box to compare against.
//
// Returns:
//   - The GIoU score, always <= CalculateIoU(r, o).
func CalculateGIoU(r, o Rect) float32 {
	inter, union := intersectionUnion(r, o)
	var iou float32
	if union > 0 {
		iou = inter / union
	}
	return generalized(iou, union, enclosingArea(r, o))
}

// PairwiseIoU computes the IoU and union area of every pair (a[i], b[j]).
//
// Arguments:
//   - a: N boxes (rows).
//   - b: M boxes (columns).
//
// Returns:
//   - iou: N×M matrix of IoU scores.
//   - union: N×M matrix of union areas.
//
// Both matrices are nil when either side is empty, since gonum does not
// allow zero-sized dense matrices.
func PairwiseIoU(a, b []Rect) (iou, union *mat.Dense) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}

	iou = mat.NewDense(len(a), len(b), nil)
	union = mat.NewDense(len(a), len(b), nil)
	for i, r := range a {
		for j, o := range b {
			in, un := intersectionUnion(r, o)
			union.Set(i, j, float64(un))
			if un > 0 {
				iou.Set(i, j, float64(in/un))
			}
		}
	}
	return iou, union
}

// PairwiseGIoU computes the GIoU of every pair (a[i], b[j]) as an N×M matrix.
// It returns nil when either side is empty.
func PairwiseGIoU(a, b []Rect) *mat.Dense {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	giou := mat.NewDense(len(a), len(b), nil)
	for i, r := range a {
		for j, o := range b {
			giou.Set(i, j, float64(CalculateGIoU(r, o)))
		}
	}
	return giou
}
