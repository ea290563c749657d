package stage

import "testing"

func TestScaleProgress(t *testing.T) {
	tests := []struct {
		percent, want int
	}{
		{-5, ProgressSeparating},
		{0, ProgressSeparating},
		{50, 62},
		{100, ProgressSeparated},
		{250, ProgressSeparated},
	}
	for _, tt := range tests {
		if got := ScaleProgress(tt.percent, ProgressSeparating, ProgressSeparated); got != tt.want {
			t.Fatalf("ScaleProgress(%d) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}

func TestMilestonesIncrease(t *testing.T) {
	milestones := []int{ProgressStarted, ProgressLocated, ProgressAcquired, ProgressSeparating, ProgressSeparated, ProgressArchived, ProgressPublishing, ProgressComplete}
	for i := 1; i < len(milestones); i++ {
		if milestones[i] <= milestones[i-1] {
			t.Fatalf("milestone %d (%d) does not exceed %d", i, milestones[i], milestones[i-1])
		}
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy(Locate); !h.Ready || h.Name != Locate {
		t.Fatalf("unexpected %+v", h)
	}
	if h := Unhealthy(Separate, "python missing"); h.Ready || h.Detail != "python missing" {
		t.Fatalf("unexpected %+v", h)
	}
}
