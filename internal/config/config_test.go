package config

import (
	"os"
	"testing"
	"time"
)

func TestPolicyConfig_Defaults(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"HistoryDepth", cfg.Policy.HistoryDepth, 5},
		{"FailureThreshold", cfg.Policy.FailureThreshold, 5},
		{"LockoutDuration", cfg.Policy.LockoutDuration, 15 * time.Minute},
		{"MinimumPasswordAge", cfg.Policy.MinimumPasswordAge, 24 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestPolicyConfig_CustomValues(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("POLICY_HISTORY_DEPTH", "10")
	os.Setenv("POLICY_FAILURE_THRESHOLD", "3")
	os.Setenv("POLICY_LOCKOUT_DURATION", "30m")
	os.Setenv("POLICY_MINIMUM_PASSWORD_AGE", "48h")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Policy.HistoryDepth != 10 {
		t.Errorf("HistoryDepth: got %d, want 10", cfg.Policy.HistoryDepth)
	}
	if cfg.Policy.FailureThreshold != 3 {
		t.Errorf("FailureThreshold: got %d, want 3", cfg.Policy.FailureThreshold)
	}
	if cfg.Policy.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Policy.LockoutDuration)
	}
	if cfg.Policy.MinimumPasswordAge != 48*time.Hour {
		t.Errorf("MinimumPasswordAge: got %v, want 48h", cfg.Policy.MinimumPasswordAge)
	}
}

func TestPolicyConfig_RejectsNonPositiveValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero threshold", "POLICY_FAILURE_THRESHOLD", "0"},
		{"negative threshold", "POLICY_FAILURE_THRESHOLD", "-1"},
		{"zero lockout duration", "POLICY_LOCKOUT_DURATION", "0s"},
		{"negative lockout duration", "POLICY_LOCKOUT_DURATION", "-5m"},
		{"zero history depth", "POLICY_HISTORY_DEPTH", "0"},
		{"zero minimum age", "POLICY_MINIMUM_PASSWORD_AGE", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("DB_PASSWORD", "test")
			os.Setenv(tt.key, tt.value)
			defer os.Clearenv()

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s succeeded, want configuration error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() without DB_PASSWORD succeeded, want error")
	}
}
