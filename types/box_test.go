package types

import (
	"math"
	"testing"
)

func TestBoxAccumulation(t *testing.T) {
	box := NewBox()
	box = box.ExtendPoint(Vec3{1, -1, 2})
	box = box.ExtendPoint(Vec3{-3, 4, 0})

	if box.Min != (Vec3{-3, -1, 0}) || box.Max != (Vec3{1, 4, 2}) {
		t.Fatalf("unexpected accumulated box %+v", box)
	}
	if got := box.MaxExtent(); got != 5 {
		t.Fatalf("expected max extent 5; got %v", got)
	}
	if got := box.Center(); got != (Vec3{-1, 1.5, 1}) {
		t.Fatalf("unexpected center %v", got)
	}
}

func TestBoxInflate(t *testing.T) {
	box := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}.Inflate(0.5)
	if box.Min != (Vec3{-0.5, -0.5, -0.5}) || box.Max != (Vec3{1.5, 1.5, 1.5}) {
		t.Fatalf("unexpected inflated box %+v", box)
	}
}

func TestBoxContains(t *testing.T) {
	box := Box{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}

	if !box.Contains(Vec3{0, 0, 0}) {
		t.Fatal("expected center to be contained")
	}
	if !box.Contains(Vec3{1, 1, 1}) {
		t.Fatal("expected corner to be contained")
	}
	if box.Contains(Vec3{1.001, 0, 0}) {
		t.Fatal("expected exterior point to not be contained")
	}
}

func TestBoxDistanceSquared(t *testing.T) {
	box := Box{Min: Vec3{0, 0, 0}, Max: Vec3{2, 2, 2}}

	if got := box.DistanceSquared(Vec3{1, 1, 1}); got != 0 {
		t.Fatalf("expected zero distance for interior point; got %v", got)
	}
	if got := box.DistanceSquared(Vec3{3, 1, 1}); got != 1 {
		t.Fatalf("expected squared distance 1; got %v", got)
	}
	if got := box.DistanceSquared(Vec3{3, 3, 1}); math.Abs(got-2) > 1e-15 {
		t.Fatalf("expected squared distance 2; got %v", got)
	}
}
