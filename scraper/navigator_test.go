package scraper

import (
	"testing"
	"time"
)

func TestRetryBackoff(t *testing.T) {
	for attempt := 1; attempt <= 4; attempt++ {
		floor := retryBaseDelay * time.Duration(1<<(attempt-1))
		ceil := floor + time.Second
		for i := 0; i < 25; i++ {
			d := retryBackoff(attempt)
			if d < floor || d >= ceil {
				t.Fatalf("attempt %d: backoff %s outside [%s, %s)", attempt, d, floor, ceil)
			}
		}
	}
}

func TestRetryBackoff_DoublesPerAttempt(t *testing.T) {
	// Jitter is under a second, so consecutive floors never overlap.
	if retryBackoff(2) <= retryBackoff(1)-time.Second {
		t.Error("attempt 2 should always exceed attempt 1's range")
	}
	if d := retryBackoff(3); d < 4*retryBaseDelay {
		t.Errorf("attempt 3 backoff %s below 4x base", d)
	}
}

func TestRetryBackoff_ClampsBadAttempt(t *testing.T) {
	if d := retryBackoff(0); d < retryBaseDelay {
		t.Errorf("attempt 0 backoff %s below base", d)
	}
}
