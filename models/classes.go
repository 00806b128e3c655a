// Package models - Class name sets for the real classes of a detector.
//
// Set-prediction losses index real classes from 0 and reserve the index equal
// to the class count for "no object", so the sets here carry no background
// entry.
package models

import (
	"strings"

	"github.com/pkg/errors"
)

// NoObject is the display name of the background label.
const NoObject = "no-object"

// ErrUnknownClassSet is returned by LookupClassSet for an unregistered name.
var ErrUnknownClassSet = errors.New("models: unknown class set")

// ClassSet is an ordered list of real class names.
type ClassSet struct {
	// Style identifies the dataset convention.
	Style string
	// Names holds the class names by index.
	Names []string
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewClassSet builds a set and its name index.
func NewClassSet(style string, names ...string) *ClassSet {
	s := &ClassSet{Style: style, Names: names, nameToIdx: make(map[string]int, len(names))}
	for i, n := range names {
		s.nameToIdx[n] = i
	}
	return s
}

// Len returns the number of real classes C.
func (s *ClassSet) Len() int {
	return len(s.Names)
}

// Background returns the label reserved for "no object".
func (s *ClassSet) Background() int {
	return len(s.Names)
}

// Name returns the display name of a label. The background label maps to
// NoObject.
func (s *ClassSet) Name(label int) (string, error) {
	switch {
	case label == s.Background():
		return NoObject, nil
	case label < 0 || label > s.Background():
		return "", errors.Errorf("label %d out of range for %q", label, s.Style)
	}
	return s.Names[label], nil
}

// Index returns the label of a class name.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in %q", name, s.Style)
	}
	return idx, nil
}

// COCOClasses is the 80 COCO classes.
var COCOClasses = NewClassSet("coco",
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange", "broccoli",
	"carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard",
	"cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
)

// PascalVOCClasses is the 20 Pascal VOC classes.
var PascalVOCClasses = NewClassSet("voc",
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse", "motorbike", "person", "pottedplant",
	"sheep", "sofa", "train", "tvmonitor",
)

// LookupClassSet returns a registered set by style, case-insensitively.
func LookupClassSet(style string) (*ClassSet, error) {
	for _, s := range []*ClassSet{COCOClasses, PascalVOCClasses} {
		if strings.EqualFold(s.Style, style) {
			return s, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownClassSet, "%q", style)
}
