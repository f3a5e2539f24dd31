package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		RetryJitter:         0.5,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "vision.generate", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "vision.generate", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !domain.IsKind(WrapTemporary("vision generate", err, ClassifyHTTP), domain.ErrTemporary) {
		t.Fatalf("expected open circuit to be reported as temporary")
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), nil)

	attempts := 0
	got, err := Call(context.Background(), exec, "op", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &HTTPStatusError{Service: "ollama", Operation: "generate", StatusCode: http.StatusServiceUnavailable, Status: "503"}
		}
		return "ok", nil
	}, ClassifyHTTP)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "ok" || attempts != 2 {
		t.Fatalf("expected ok after 2 attempts, got %q after %d", got, attempts)
	}
}

func TestCallWithoutExecutorRunsOnce(t *testing.T) {
	attempts := 0
	_, err := Call(context.Background(), nil, "op", func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("boom")
	}, nil)
	if err == nil || attempts != 1 {
		t.Fatalf("expected single failing attempt, got err=%v attempts=%d", err, attempts)
	}
}

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "cancelled", err: context.Canceled, retryable: false, record: false},
		{name: "rate limited", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "bad request", err: &HTTPStatusError{StatusCode: http.StatusBadRequest}, retryable: false, record: false},
		{name: "unknown", err: errors.New("decode"), retryable: false, record: true},
	}
	for _, tc := range cases {
		got := ClassifyHTTP(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: expected retryable=%v record=%v, got %+v", tc.name, tc.retryable, tc.record, got)
		}
	}
}
