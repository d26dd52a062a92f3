package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naviable/naviable-go/internal/conversation"
)

func TestSafe_LLMErrorDegrades(t *testing.T) {
	a := Safe(NewToolAgent(&mockLLM{err: context.DeadlineExceeded}, "gpt", nil), time.Second)

	res, err := a.Invoke(context.Background(), flightRequest())
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, Flight, res.Capability)
	require.Contains(t, res.Reply, "took too long")
	require.Contains(t, res.Reply, "unavailable")
}

func TestSafe_Timeout(t *testing.T) {
	slow := Func(func(ctx context.Context, req Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	res, err := Safe(slow, 20*time.Millisecond).Invoke(context.Background(), Request{Capability: Lodging})
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Contains(t, res.Reply, "hotel search")
}

func TestSafe_RecoversPanic(t *testing.T) {
	boom := Func(func(ctx context.Context, req Request) (Result, error) {
		panic("boom")
	})

	res, err := Safe(boom, 0).Invoke(context.Background(), Request{Capability: General, Transcript: conversation.Transcript{conversation.User("x y z")}})
	require.NoError(t, err)
	require.True(t, res.Degraded)
}

func TestSafe_PassesThroughSuccess(t *testing.T) {
	ok := Func(func(ctx context.Context, req Request) (Result, error) {
		return Result{Reply: "fine"}, nil
	})

	res, err := Safe(ok, time.Second).Invoke(context.Background(), Request{Capability: Flight})
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.Equal(t, Flight, res.Capability)
	require.Equal(t, "fine", res.Reply)
}
