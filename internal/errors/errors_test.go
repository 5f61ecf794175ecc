package errors

import "testing"

func TestIsClientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Wrapf(ErrInvalidScheduleSpec, "time %q", "25:00"), true},
		{Wrap(ErrInvalidMode, "mode"), true},
		{Mark(New("empty"), ErrInvalidCode), true},
		{Wrap(ErrPersistence, "commit"), false},
		{ErrTransientDelivery, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsClientError(tt.err); got != tt.want {
			t.Fatalf("IsClientError(%v)=%v want %v", tt.err, got, tt.want)
		}
	}
}
