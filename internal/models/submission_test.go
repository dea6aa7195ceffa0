package models

import "testing"

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0.0, RiskLow},
		{0.29, RiskLow},
		{0.3, RiskMedium},
		{0.49, RiskMedium},
		{0.5, RiskHigh},
		{1.0, RiskHigh},
	}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.score); got != tc.want {
			t.Errorf("ClassifyRisk(%.2f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestTerminalStatus(t *testing.T) {
	for status, want := range map[SubmissionStatus]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %t, want %t", status, got, want)
		}
	}
}
