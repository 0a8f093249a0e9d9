package acquire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietAcquirer() *Acquirer {
	return &Acquirer{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestWithRetryRetriesOnlyLoginAndCaptcha(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRuns  int
		wantFinal error
	}{
		{"login auth", ErrLoginAuth, 10, ErrAttemptsExhausted},
		{"captcha unsolved", ErrCaptchaUnsolved, 10, ErrAttemptsExhausted},
		{"wrapped login auth", errors.Join(errors.New("attempt 3"), ErrLoginAuth), 10, ErrAttemptsExhausted},
		{"blocked", &BlockedError{OrderNumber: 5}, 1, nil},
		{"structural", errors.New("element #x not found"), 1, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := quietAcquirer()
			runs := 0
			_, err := a.withRetry(context.Background(), func() (Outcome, error) {
				runs++
				return Outcome{}, tc.err
			})
			assert.Equal(t, tc.wantRuns, runs)
			if tc.wantFinal != nil {
				assert.ErrorIs(t, err, tc.wantFinal)
			} else {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestWithRetrySucceedsMidway(t *testing.T) {
	a := quietAcquirer()
	runs := 0
	out, err := a.withRetry(context.Background(), func() (Outcome, error) {
		runs++
		if runs < 4 {
			return Outcome{}, ErrCaptchaUnsolved
		}
		return Outcome{MainContent: "done"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, runs)
	assert.Equal(t, "done", out.MainContent)
}

func TestWithRetryHonorsAttemptsOverride(t *testing.T) {
	a := quietAcquirer()
	a.Attempts = 2
	runs := 0
	_, err := a.withRetry(context.Background(), func() (Outcome, error) {
		runs++
		return Outcome{}, ErrLoginAuth
	})
	assert.Equal(t, 2, runs)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	a := quietAcquirer()
	ctx, cancel := context.WithCancel(context.Background())

	runs := 0
	_, err := a.withRetry(ctx, func() (Outcome, error) {
		runs++
		cancel()
		return Outcome{}, ErrLoginAuth
	})
	assert.Equal(t, 1, runs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsBlocked(t *testing.T) {
	assert.True(t, IsBlocked(&BlockedError{OrderNumber: 1}))
	assert.True(t, IsBlocked(errors.Join(errors.New("run failed"), &BlockedError{OrderNumber: 1})))
	assert.False(t, IsBlocked(ErrLoginAuth))
	assert.False(t, IsBlocked(nil))
}
