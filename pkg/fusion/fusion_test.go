package fusion_test

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// box returns a bbox centered horizontally at cx.
func box(cx int) image.Rectangle {
	return image.Rect(cx-10, 0, cx+10, 50)
}

func TestSectorize(t *testing.T) {
	tests := []struct {
		name string
		cxs  []int
		want fusion.Occupancy
	}{
		{name: "no detections", cxs: nil, want: fusion.Occupancy{}},
		{name: "left", cxs: []int{50}, want: fusion.Occupancy{true, false, false}},
		{name: "exactly one third is center", cxs: []int{100}, want: fusion.Occupancy{false, true, false}},
		{name: "exactly two thirds is center", cxs: []int{200}, want: fusion.Occupancy{false, true, false}},
		{name: "right", cxs: []int{250}, want: fusion.Occupancy{false, false, true}},
		{name: "or reduction", cxs: []int{250, 50, 260}, want: fusion.Occupancy{true, false, true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var dets []vision.Detection
			for _, cx := range tc.cxs {
				dets = append(dets, vision.Detection{Label: "person", Box: box(cx)})
			}
			got := fusion.Sectorize(300, dets)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Sectorize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSectorize_OrderIndependent(t *testing.T) {
	a := []vision.Detection{{Box: box(20)}, {Box: box(150)}}
	b := []vision.Detection{{Box: box(150)}, {Box: box(20)}}
	if fusion.Sectorize(300, a) != fusion.Sectorize(300, b) {
		t.Error("Sectorize depends on detection order")
	}
}

func TestFuse(t *testing.T) {
	tests := []struct {
		name string
		in   fusion.Occupancy
		d    ranging.Reading
		want fusion.Occupancy
	}{
		{"close forces center", fusion.Occupancy{}, ranging.At(0.4), fusion.Occupancy{false, true, false}},
		{"at danger leaves unchanged", fusion.Occupancy{true, false, false}, ranging.At(1.5), fusion.Occupancy{true, false, false}},
		{"far leaves unchanged", fusion.Occupancy{false, false, true}, ranging.At(3.0), fusion.Occupancy{false, false, true}},
		{"unavailable is a no-op", fusion.Occupancy{true, false, true}, ranging.Unavailable, fusion.Occupancy{true, false, true}},
		{"never clears", fusion.Occupancy{true, true, true}, ranging.At(0.1), fusion.Occupancy{true, true, true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fusion.Fuse(tc.in, tc.d, 1.5); got != tc.want {
				t.Errorf("Fuse() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		o    fusion.Occupancy
		d    ranging.Reading
		want string
	}{
		{fusion.Occupancy{}, ranging.Unavailable, "clear path"},
		{fusion.Occupancy{}, ranging.At(2.34), "clear path, 2.3 meters"},
		{fusion.Occupancy{true, true, false}, ranging.At(1.24), "obstacle ahead and left, 1.2 meters"},
		{fusion.Occupancy{true, true, true}, ranging.Unavailable, "obstacle ahead and left and right"},
		{fusion.Occupancy{false, false, true}, ranging.Unavailable, "obstacle right"},
	}

	for _, tc := range tests {
		if got := fusion.Describe(tc.o, tc.d); got != tc.want {
			t.Errorf("Describe(%v, %v) = %q, want %q", tc.o, tc.d, got, tc.want)
		}
	}
}

func TestSummary(t *testing.T) {
	if got := fusion.Summary(fusion.Occupancy{}); got != "clear" {
		t.Errorf("Summary(empty) = %q", got)
	}
	if got := fusion.Summary(fusion.Occupancy{true, false, true}); got != "left and right" {
		t.Errorf("Summary(l,r) = %q", got)
	}
}

func TestSafeDirection(t *testing.T) {
	tests := []struct {
		o    fusion.Occupancy
		want fusion.Direction
	}{
		{fusion.Occupancy{true, false, true}, fusion.Forward},
		{fusion.Occupancy{false, true, false}, fusion.TurnLeft},
		{fusion.Occupancy{true, true, false}, fusion.TurnRight},
		{fusion.Occupancy{true, true, true}, fusion.Blocked},
	}

	for _, tc := range tests {
		if got := fusion.SafeDirection(tc.o); got != tc.want {
			t.Errorf("SafeDirection(%v) = %v, want %v", tc.o, got, tc.want)
		}
	}
}

func TestSector_String(t *testing.T) {
	want := map[fusion.Sector]string{fusion.Left: "left", fusion.Center: "ahead", fusion.Right: "right"}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), name)
		}
	}
}
