package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"pending to generating", StatusPending, StatusGenerating, true},
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending to packaging", StatusPending, StatusPackaging, false},
		{"generating to processing", StatusGenerating, StatusProcessing, true},
		{"generating back to pending", StatusGenerating, StatusPending, false},
		{"processing to packaging", StatusProcessing, StatusPackaging, true},
		{"processing to success", StatusProcessing, StatusSuccess, false},
		{"packaging to success", StatusPackaging, StatusSuccess, true},
		{"any active to failure", StatusProcessing, StatusFailure, true},
		{"pending to failure", StatusPending, StatusFailure, true},
		{"success is terminal", StatusSuccess, StatusFailure, false},
		{"failure is terminal", StatusFailure, StatusPending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []TaskStatus{StatusPending, StatusGenerating, StatusProcessing, StatusPackaging} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []TaskStatus{StatusSuccess, StatusFailure} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestAdvanceProgressNeverRegresses(t *testing.T) {
	task := NewTask("t1", DefaultParams())

	task.AdvanceProgress(50)
	if task.Progress != 50 {
		t.Fatalf("progress = %d, want 50", task.Progress)
	}
	task.AdvanceProgress(25)
	if task.Progress != 50 {
		t.Fatalf("progress regressed to %d", task.Progress)
	}
	task.AdvanceProgress(250)
	if task.Progress != 100 {
		t.Fatalf("progress = %d, want capped at 100", task.Progress)
	}
}

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask("t1", DefaultParams())
	if task.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", task.Status)
	}
	if task.RetriesLeft != 1 {
		t.Fatalf("retries_left = %d, want 1", task.RetriesLeft)
	}
	if task.Generated() {
		t.Fatalf("task without prompt should not be generated")
	}
	task.Prompt = "a knight"
	if !task.Generated() {
		t.Fatalf("task with prompt should be generated")
	}
}
