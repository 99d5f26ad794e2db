// Package gearcheck runs randomized operation sequences against a system
// under test and cross-checks it with a caller-supplied verifier. Steps are
// weighted and drawn from a seeded source, so any failure is replayable
// from the seed carried in the returned error.
package gearcheck

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

var ErrNotInitialized = errors.New("gearcheck: no steps added")

// StepFunc performs one randomized operation. It draws all randomness from
// rnd, which is the plan's single seeded source.
type StepFunc func(rnd *rand.Rand) error

// VerifyFunc cross-checks the system under test against its model.
type VerifyFunc func() error

type step struct {
	id     string
	weight uint
	fn     StepFunc
}

func (s step) String() string {
	return fmt.Sprintf("%s weight=%d", s.id, s.weight)
}

// Plan is a weighted mix of steps plus an optional periodic verifier.
type Plan struct {
	steps  []step
	total  uint
	verify VerifyFunc
	every  int

	sugar *zap.SugaredLogger
}

func NewPlan(logger *zap.Logger) *Plan {
	return &Plan{sugar: logger.Sugar()}
}

// Add registers a step; its share of operations is weight over the sum of
// all weights. Steps with no weight or no function are dropped.
func (p *Plan) Add(weight uint, id string, fn StepFunc) {
	if weight == 0 || fn == nil {
		p.sugar.Errorw("step not added", "id", id, "weight", weight)
		return
	}
	p.steps = append(p.steps, step{id: id, weight: weight, fn: fn})
	p.total += weight
	p.sugar.Infof("added step %v", p.steps[len(p.steps)-1])
}

// SetVerifyFunc installs the verifier, invoked after every `every` steps and
// once more after the final step.
func (p *Plan) SetVerifyFunc(fn VerifyFunc, every int) {
	if every < 1 {
		every = 1
	}
	p.verify = fn
	p.every = every
}

// Run executes count randomly drawn steps in sequence. Steps mutate shared
// state, so a plan runs on one goroutine; the verifier may fan out reads on
// its own. The first step, verify or context error aborts the run; step and
// verify failures are wrapped with the operation number and seed for replay.
func (p *Plan) Run(ctx context.Context, seed int64, count int) error {
	if len(p.steps) == 0 {
		return ErrNotInitialized
	}

	rnd := rand.New(rand.NewSource(seed))
	p.sugar.Infow("run started", "seed", seed, "ops", count)
	for op := 1; op <= count; op++ {
		if err := ctx.Err(); err != nil {
			p.sugar.Infow("run canceled", "op", op)
			return err
		}
		st := p.pick(rnd)
		p.sugar.Debugf("op %d: %s", op, st.id)
		if err := st.fn(rnd); err != nil {
			return fmt.Errorf("step %s at op %d (seed %d): %w", st.id, op, seed, err)
		}
		if p.verify != nil && op%p.every == 0 {
			if err := p.verify(); err != nil {
				return fmt.Errorf("verify at op %d (seed %d): %w", op, seed, err)
			}
		}
	}
	if p.verify != nil {
		if err := p.verify(); err != nil {
			return fmt.Errorf("final verify (seed %d): %w", seed, err)
		}
	}
	p.sugar.Infow("run finished", "seed", seed, "ops", count)
	return nil
}

func (p *Plan) pick(rnd *rand.Rand) step {
	n := rnd.Intn(int(p.total))
	for _, st := range p.steps {
		if n < int(st.weight) {
			return st
		}
		n -= int(st.weight)
	}
	return p.steps[len(p.steps)-1]
}
