// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unigate/unigate/providers"
)

func TestSet_OpensAtThreshold(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 3, Cooldown: time.Minute})

	// threshold-1 failures: still closed.
	s.RecordFailure("openai")
	s.RecordFailure("openai")
	assert.Equal(t, StateClosed, s.State("openai"))
	assert.NoError(t, s.Allow("openai"))

	// The next failure opens the circuit.
	s.RecordFailure("openai")
	assert.Equal(t, StateOpen, s.State("openai"))

	err := s.Allow("openai")
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrBreakerOpen))
}

func TestSet_IndependentCells(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 1, Cooldown: time.Minute})

	s.RecordFailure("anthropic")
	assert.Equal(t, StateOpen, s.State("anthropic"))
	assert.NoError(t, s.Allow("openai"), "distinct providers have independent breakers")
}

func TestSet_CooldownAdmitsProbe(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 1, Cooldown: 30 * time.Second, HalfOpenProbes: 1})
	s.RecordFailure("ollama")

	// Cooldown not elapsed: synthetic failure.
	s.since = func(time.Time) time.Duration { return 10 * time.Second }
	assert.Error(t, s.Allow("ollama"))

	// Cooldown elapsed: one probe is admitted, a second is rejected.
	s.since = func(time.Time) time.Duration { return 31 * time.Second }
	assert.NoError(t, s.Allow("ollama"))
	assert.Equal(t, StateHalfOpen, s.State("ollama"))
	assert.Error(t, s.Allow("ollama"))
}

func TestSet_HalfOpenOutcomes(t *testing.T) {
	t.Run("probe success closes", func(t *testing.T) {
		s := NewSet(Config{FailureThreshold: 1, Cooldown: time.Nanosecond})
		s.RecordFailure("wiki")
		time.Sleep(time.Millisecond)

		require.NoError(t, s.Allow("wiki"))
		s.RecordSuccess("wiki")
		assert.Equal(t, StateClosed, s.State("wiki"))
		assert.NoError(t, s.Allow("wiki"))
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		s := NewSet(Config{FailureThreshold: 5, Cooldown: time.Nanosecond})
		for i := 0; i < 5; i++ {
			s.RecordFailure("wiki")
		}
		time.Sleep(time.Millisecond)

		require.NoError(t, s.Allow("wiki"))
		s.RecordFailure("wiki")
		assert.Equal(t, StateOpen, s.State("wiki"))
	})
}

func TestSet_SuccessResetsCounter(t *testing.T) {
	s := NewSet(Config{FailureThreshold: 3, Cooldown: time.Minute})

	s.RecordFailure("newsapi")
	s.RecordFailure("newsapi")
	s.RecordSuccess("newsapi")

	// Counter reset: two more failures do not reach the threshold.
	s.RecordFailure("newsapi")
	s.RecordFailure("newsapi")
	assert.Equal(t, StateClosed, s.State("newsapi"))
}

func TestSet_Snapshot(t *testing.T) {
	s := NewSet(DefaultConfig())
	s.RecordFailure("a")
	for i := 0; i < 5; i++ {
		s.RecordFailure("b")
	}

	snap := s.Snapshot()
	assert.Equal(t, StateClosed, snap["a"])
	assert.Equal(t, StateOpen, snap["b"])
}
