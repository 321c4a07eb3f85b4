package vision

import (
	"errors"
	"image"
	"testing"
)

func TestDetection_CenterX(t *testing.T) {
	d := Detection{Box: image.Rect(200, 10, 300, 90)}
	if got := d.CenterX(); got != 250 {
		t.Errorf("CenterX() = %v, want 250", got)
	}
}

func TestTop(t *testing.T) {
	tests := []struct {
		name   string
		dets   []Detection
		want   string
		wantOK bool
	}{
		{name: "empty", dets: nil, wantOK: false},
		{
			name:   "single",
			dets:   []Detection{{Label: "chair", Confidence: 0.4}},
			want:   "chair",
			wantOK: true,
		},
		{
			name: "highest wins",
			dets: []Detection{
				{Label: "chair", Confidence: 0.4},
				{Label: "person", Confidence: 0.9},
				{Label: "car", Confidence: 0.6},
			},
			want:   "person",
			wantOK: true,
		},
		{
			name: "first wins on tie",
			dets: []Detection{
				{Label: "bus", Confidence: 0.7},
				{Label: "truck", Confidence: 0.7},
			},
			want:   "bus",
			wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Top(tc.dets)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.Label != tc.want {
				t.Errorf("Top() = %q, want %q", got.Label, tc.want)
			}
		})
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName(0); got != "person" {
		t.Errorf("ClassName(0) = %q", got)
	}
	if got := ClassName(56); got != "chair" {
		t.Errorf("ClassName(56) = %q", got)
	}
	if got := ClassName(80); got != "object" {
		t.Errorf("ClassName(80) = %q", got)
	}
	if got := ClassName(-1); got != "object" {
		t.Errorf("ClassName(-1) = %q", got)
	}
}

func TestFilterObstacles(t *testing.T) {
	dets := []Detection{
		{Label: "person"},
		{Label: "cup"},
		{Label: "chair"},
		{Label: "tv"},
	}

	got := FilterObstacles(dets, nil)
	if len(got) != 2 || got[0].Label != "person" || got[1].Label != "chair" {
		t.Errorf("FilterObstacles(default) = %+v", got)
	}

	got = FilterObstacles(dets, []string{"tv"})
	if len(got) != 1 || got[0].Label != "tv" {
		t.Errorf("FilterObstacles(tv) = %+v", got)
	}
}

func TestMockSource_FailAfter(t *testing.T) {
	boom := errors.New("camera unplugged")
	src := NewMockSource(640, 480).FailAfter(2, boom)

	for i := 0; i < 2; i++ {
		f, err := src.Read()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if f.Width() != 640 || f.Height() != 480 {
			t.Errorf("frame = %dx%d", f.Width(), f.Height())
		}
	}
	if _, err := src.Read(); !errors.Is(err, boom) {
		t.Errorf("third read err = %v, want %v", err, boom)
	}

	src.Close()
	if _, err := src.Read(); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("read after close err = %v", err)
	}
}
