package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsInPriorityOrder(t *testing.T) {
	gs := NewGracefulShutdown(logrus.New(), time.Second)

	var order []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	gs.Register(ShutdownResource{Name: "amqp", Priority: 20, Shutdown: record("amqp")})
	gs.Register(ShutdownResource{Name: "http", Priority: 10, Shutdown: record("http")})
	gs.Register(ShutdownResource{Name: "hub", Priority: 15, Shutdown: record("hub")})

	require.NoError(t, gs.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "hub", "amqp"}, order)
}

func TestShutdownCollectsErrors(t *testing.T) {
	gs := NewGracefulShutdown(logrus.New(), time.Second)

	gs.Register(ShutdownResource{
		Name:     "failing",
		Priority: 1,
		Shutdown: func(ctx context.Context) error { return errors.New("boom") },
	})
	gs.Register(ShutdownResource{
		Name:     "healthy",
		Priority: 2,
		Shutdown: func(ctx context.Context) error { return nil },
	})

	err := gs.Shutdown(context.Background())

	var multi *MultiShutdownError
	require.ErrorAs(t, err, &multi)
	require.Len(t, multi.Errors, 1)
	assert.Contains(t, multi.Errors[0].Error(), "failing")
}

func TestShutdownAbandonsHungResource(t *testing.T) {
	gs := NewGracefulShutdown(logrus.New(), 100*time.Millisecond)

	gs.Register(ShutdownResource{
		Name:     "hung",
		Priority: 1,
		Shutdown: func(ctx context.Context) error {
			<-time.After(5 * time.Second)
			return nil
		},
	})

	start := time.Now()
	err := gs.Shutdown(context.Background())

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "shutdown does not wait out the hung resource")
}

func TestShutdownRecoversFromPanic(t *testing.T) {
	gs := NewGracefulShutdown(logrus.New(), time.Second)

	gs.Register(ShutdownResource{
		Name:     "panicky",
		Priority: 1,
		Shutdown: func(ctx context.Context) error { panic("boom") },
	})

	err := gs.Shutdown(context.Background())

	var multi *MultiShutdownError
	require.ErrorAs(t, err, &multi)
	assert.Contains(t, multi.Errors[0].Error(), "panicky")
}
