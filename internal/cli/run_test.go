package cli

import (
	"testing"
	"time"
)

func TestParseRunEvery(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{
			name:    "empty",
			input:   "",
			want:    0,
			wantErr: false,
		},
		{
			name:    "valid duration",
			input:   "90s",
			want:    90 * time.Second,
			wantErr: false,
		},
		{
			name:    "parse error",
			input:   "abc",
			want:    0,
			wantErr: true,
		},
		{
			name:    "zero duration",
			input:   "0s",
			want:    0,
			wantErr: true,
		},
		{
			name:    "negative duration",
			input:   "-1m",
			want:    0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		got, err := parseRunEvery(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRunActionRejectsBadEvery(t *testing.T) {
	resetRunFlags(t)
	runEvery = "soon"

	err := runAction(testCommand(t), nil)
	if err == nil {
		t.Fatal("expected error for invalid --every")
	}
	requireContains(t, err.Error(), "--every")
}
