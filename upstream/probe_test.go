package upstream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
)

func TestFirstSuccess_StopsAtFirstWinner(t *testing.T) {
	candidates := []string{"/a", "/b", "/c", "/d"}
	var attempted []string

	idx, result, err := FirstSuccess(context.Background(), candidates, func(_ context.Context, c string) (string, error) {
		attempted = append(attempted, c)
		if c == "/c" {
			return "winner", nil
		}
		return "", errors.New("nope")
	}, zap.NewNop())

	assert.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "winner", result)
	// never invokes candidates after the winner
	assert.Equal(t, []string{"/a", "/b", "/c"}, attempted)
}

func TestFirstSuccess_FirstCandidateWins(t *testing.T) {
	calls := 0
	idx, _, err := FirstSuccess(context.Background(), []string{"/only"}, func(_ context.Context, _ string) (int, error) {
		calls++
		return 42, nil
	}, zap.NewNop())

	assert.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, calls)
}

func TestFirstSuccess_AllExhausted(t *testing.T) {
	candidates := []string{"/a", "/b", "/c"}
	calls := 0

	_, _, err := FirstSuccess(context.Background(), candidates, func(_ context.Context, _ string) (string, error) {
		calls++
		return "", errors.New("down")
	}, zap.NewNop())

	assert.Equal(t, len(candidates), calls)
	assert.Equal(t, types.ErrNoCandidateAvailable, types.GetErrorCode(err))
}

func TestFirstSuccess_EmptyCandidates(t *testing.T) {
	_, _, err := FirstSuccess(context.Background(), nil, func(_ context.Context, _ string) (string, error) {
		t.Fatal("attempt must not run")
		return "", nil
	}, zap.NewNop())
	assert.Equal(t, types.ErrNoCandidateAvailable, types.GetErrorCode(err))
}

func TestFirstSuccess_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, _, err := FirstSuccess(ctx, []string{"/a", "/b"}, func(_ context.Context, _ string) (string, error) {
		calls++
		cancel()
		return "", errors.New("down")
	}, zap.NewNop())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation aborts between candidates")
}
