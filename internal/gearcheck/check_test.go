package gearcheck

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPlanRunMatchesModel(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	plan := NewPlan(logger)

	balance := 0
	mirror := 0
	deposits := 0
	withdrawals := 0
	plan.Add(3, "deposit", func(rnd *rand.Rand) error {
		n := rnd.Intn(10)
		balance += n
		mirror += n
		deposits++
		return nil
	})
	plan.Add(1, "withdraw", func(rnd *rand.Rand) error {
		n := rnd.Intn(5)
		balance -= n
		mirror -= n
		withdrawals++
		return nil
	})
	plan.SetVerifyFunc(func() error {
		if balance != mirror {
			return fmt.Errorf("balance %d diverged from mirror %d", balance, mirror)
		}
		return nil
	}, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	require.NoError(t, plan.Run(ctx, 42, 10000))
	require.Equal(t, 10000, deposits+withdrawals)
	require.Greater(t, deposits, withdrawals)
}

func TestPlanRequiresSteps(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	plan := NewPlan(logger)
	require.ErrorIs(t, plan.Run(context.Background(), 1, 10), ErrNotInitialized)
}

func TestPlanDropsUnusableSteps(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	plan := NewPlan(logger)
	plan.Add(0, "weightless", func(*rand.Rand) error { return nil })
	plan.Add(1, "nofunc", nil)
	require.ErrorIs(t, plan.Run(context.Background(), 1, 10), ErrNotInitialized)
}

func TestPlanStopsOnStepError(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	boom := errors.New("boom")
	plan := NewPlan(logger)
	ops := 0
	plan.Add(1, "failing", func(*rand.Rand) error {
		ops++
		if ops == 7 {
			return boom
		}
		return nil
	})

	err = plan.Run(context.Background(), 7, 100)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "failing")
	require.Contains(t, err.Error(), "seed 7")
	require.Equal(t, 7, ops)
}

func TestPlanReportsVerifyFailure(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	diverged := errors.New("diverged")
	plan := NewPlan(logger)
	plan.Add(1, "idle", func(*rand.Rand) error { return nil })
	plan.SetVerifyFunc(func() error { return diverged }, 5)

	err = plan.Run(context.Background(), 3, 100)
	require.ErrorIs(t, err, diverged)
	require.Contains(t, err.Error(), "op 5")
}

func TestPlanHonorsContext(t *testing.T) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	plan := NewPlan(logger)
	plan.Add(1, "idle", func(*rand.Rand) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, plan.Run(ctx, 1, 10), context.Canceled)
}
