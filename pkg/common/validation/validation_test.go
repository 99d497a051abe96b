package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/batchflow/pkg/common/errors"
)

func checkResult(t *testing.T, err error, wantError bool) {
	t.Helper()
	if wantError {
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.IsValidationError(err) {
			t.Errorf("expected ValidationError, got %T", err)
		}
		return
	}
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large negative", -1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidatePositive("test", "count", tt.value), tt.wantError)
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"zero value", 0, false},
		{"negative value", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidateNonNegative("test", "capacity", tt.value), tt.wantError)
		})
	}
}

func TestValidateAtLeast(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		min       int
		wantError bool
	}{
		{"equal", 4, 4, false},
		{"greater", 8, 4, false},
		{"less", 2, 4, true},
		{"both zero", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidateAtLeast("workerpool", "MaxSize", tt.value, "CoreSize", tt.min), tt.wantError)
		})
	}
}

func TestValidateDurations(t *testing.T) {
	tests := []struct {
		name       string
		value      time.Duration
		wantPosErr bool
		wantNonNeg bool
	}{
		{"positive", time.Second, false, false},
		{"zero", 0, true, false},
		{"negative", -time.Millisecond, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidatePositiveDuration("scheduler", "Period", tt.value), tt.wantPosErr)
			checkResult(t, ValidateNonNegativeDuration("workerpool", "KeepAlive", tt.value), tt.wantNonNeg)
		})
	}
}

func TestValidateNotNil(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"non-nil int", 123, false},
		{"non-nil pointer", new(int), false},
		{"nil value", nil, true},
		{"nil pointer", (*int)(nil), false}, // typed nil is not nil interface
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidateNotNil("test", "pool", tt.value), tt.wantError)
		})
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty string", "value", false},
		{"whitespace", " ", false}, // Whitespace is not empty
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResult(t, ValidateNotEmpty("task", "ID", tt.value), tt.wantError)
		})
	}
}

func TestFirst(t *testing.T) {
	if err := First(nil, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := First(nil, ValidatePositive("workerpool", "MaxSize", 0), ValidateNonNegative("workerpool", "CoreSize", -1))
	if err == nil || !strings.Contains(err.Error(), "MaxSize") {
		t.Fatalf("expected the MaxSize error first, got %v", err)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidateAtLeast("workerpool", "MaxSize", 1, "CoreSize", 3)
	msg := err.Error()
	for _, part := range []string{"workerpool", "MaxSize", "1", "CoreSize"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error message should contain %q, got %q", part, msg)
		}
	}
}
