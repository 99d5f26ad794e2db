package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gearstash/internal/config"
	"gearstash/internal/gearcheck"
	"gearstash/internal/geardb"
)

const displayCounter = 1000

type cog struct {
	teeth uint32
}

type shaft struct {
	torque uint64
}

type pawl struct {
	engaged uint8
}

// modelGear mirrors one gear's records. A record can be carried with an
// unknown value: attaching a new type onto a gear that already has records
// migrates the old columns but never writes the new one, so the stored bytes
// are unspecified until a write query touches them.
type modelGear struct {
	hasCog   bool
	cogKnown bool
	cog      cog

	hasShaft   bool
	shaftKnown bool
	shaft      shaft

	hasPawl   bool
	pawlKnown bool
	pawl      pawl
}

func (m *modelGear) empty() bool {
	return !m.hasCog && !m.hasShaft && !m.hasPawl
}

// Checker drives random attach/detach/remove traffic at a store and keeps a
// plain map-based mirror of what every gear must carry. Verification scans
// the store back through read queries, one goroutine per record type.
type Checker struct {
	store *geardb.Store
	model map[geardb.GearId]*modelGear
	cfg   *config.Config
	runId string

	attached int
	detached int
	removed  int

	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func NewChecker(cfg *config.Config, logger *zap.Logger) *Checker {
	s := geardb.NewStore(logger)
	geardb.Register[cog](s)
	geardb.Register[shaft](s)
	geardb.Register[pawl](s)

	return &Checker{
		store:  s,
		model:  make(map[geardb.GearId]*modelGear),
		cfg:    cfg,
		runId:  uuid.NewString(),
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

func (c *Checker) plan() *gearcheck.Plan {
	p := gearcheck.NewPlan(c.logger)
	p.Add(4, "attach-cog", c.attachCog)
	p.Add(3, "attach-shaft", c.attachShaft)
	p.Add(3, "attach-pawl", c.attachPawl)
	p.Add(2, "detach-cog", c.detachCog)
	p.Add(2, "detach-shaft", c.detachShaft)
	p.Add(2, "detach-pawl", c.detachPawl)
	p.Add(1, "remove-all", c.removeAll)
	p.SetVerifyFunc(c.verify, c.cfg.VerifyEvery)
	return p
}

// Seed returns the configured seed, or one drawn from the clock so every
// unpinned run explores a different sequence.
func (c *Checker) Seed() int64 {
	if c.cfg.RandomSeed != 0 {
		return c.cfg.RandomSeed
	}
	return time.Now().UnixNano()
}

func (c *Checker) randId(rnd *rand.Rand) geardb.GearId {
	return geardb.GearId(rnd.Intn(c.cfg.GearCount) + 1)
}

func (c *Checker) mark(kind string, count *int) {
	*count++
	if *count == displayCounter {
		*count = 0
		fmt.Fprint(os.Stdout, kind)
	}
}

func (c *Checker) attachCog(rnd *rand.Rand) error {
	id := c.randId(rnd)
	v := cog{teeth: rnd.Uint32()}
	geardb.Attach(c.store, id, v)

	m, ok := c.model[id]
	switch {
	case !ok:
		// the fresh-gear path is the only one that stores the value
		c.model[id] = &modelGear{hasCog: true, cogKnown: true, cog: v}
	case !m.hasCog:
		m.hasCog = true
		m.cogKnown = false
	}
	c.mark("A", &c.attached)
	return nil
}

func (c *Checker) attachShaft(rnd *rand.Rand) error {
	id := c.randId(rnd)
	v := shaft{torque: rnd.Uint64()}
	geardb.Attach(c.store, id, v)

	m, ok := c.model[id]
	switch {
	case !ok:
		c.model[id] = &modelGear{hasShaft: true, shaftKnown: true, shaft: v}
	case !m.hasShaft:
		m.hasShaft = true
		m.shaftKnown = false
	}
	c.mark("A", &c.attached)
	return nil
}

func (c *Checker) attachPawl(rnd *rand.Rand) error {
	id := c.randId(rnd)
	v := pawl{engaged: uint8(rnd.Intn(2))}
	geardb.Attach(c.store, id, v)

	m, ok := c.model[id]
	switch {
	case !ok:
		c.model[id] = &modelGear{hasPawl: true, pawlKnown: true, pawl: v}
	case !m.hasPawl:
		m.hasPawl = true
		m.pawlKnown = false
	}
	c.mark("A", &c.attached)
	return nil
}

func (c *Checker) detachCog(rnd *rand.Rand) error {
	id := c.randId(rnd)
	geardb.Detach[cog](c.store, id)

	if m, ok := c.model[id]; ok && m.hasCog {
		m.hasCog = false
		m.cogKnown = false
		if m.empty() {
			delete(c.model, id)
		}
	}
	c.mark("D", &c.detached)
	return nil
}

func (c *Checker) detachShaft(rnd *rand.Rand) error {
	id := c.randId(rnd)
	geardb.Detach[shaft](c.store, id)

	if m, ok := c.model[id]; ok && m.hasShaft {
		m.hasShaft = false
		m.shaftKnown = false
		if m.empty() {
			delete(c.model, id)
		}
	}
	c.mark("D", &c.detached)
	return nil
}

func (c *Checker) detachPawl(rnd *rand.Rand) error {
	id := c.randId(rnd)
	geardb.Detach[pawl](c.store, id)

	if m, ok := c.model[id]; ok && m.hasPawl {
		m.hasPawl = false
		m.pawlKnown = false
		if m.empty() {
			delete(c.model, id)
		}
	}
	c.mark("D", &c.detached)
	return nil
}

func (c *Checker) removeAll(rnd *rand.Rand) error {
	id := c.randId(rnd)
	c.store.RemoveAll(id)
	delete(c.model, id)
	c.mark("R", &c.removed)
	return nil
}

// verify rescans the store, one concurrent read query per record type, and
// compares membership and every known value against the model. Mutations are
// paused while it runs, so the read-only queries may fan out.
func (c *Checker) verify() error {
	var g errgroup.Group
	g.Go(func() error {
		return verifyRecords(c.store, c.model, "cog", func(m *modelGear) (bool, bool, cog) {
			return m.hasCog, m.cogKnown, m.cog
		})
	})
	g.Go(func() error {
		return verifyRecords(c.store, c.model, "shaft", func(m *modelGear) (bool, bool, shaft) {
			return m.hasShaft, m.shaftKnown, m.shaft
		})
	})
	g.Go(func() error {
		return verifyRecords(c.store, c.model, "pawl", func(m *modelGear) (bool, bool, pawl) {
			return m.hasPawl, m.pawlKnown, m.pawl
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, "V")
	return nil
}

func verifyRecords[T comparable](s *geardb.Store, model map[geardb.GearId]*modelGear, name string,
	mirror func(*modelGear) (has, known bool, want T)) error {
	seen := make(map[geardb.GearId]T, len(model))
	visits := 0
	geardb.Each1(s, func(id geardb.GearId, v *T) {
		seen[id] = *v
		visits++
	})
	if visits != len(seen) {
		return fmt.Errorf("%s scan visited a gear twice: %d visits over %d gears", name, visits, len(seen))
	}

	carrying := 0
	for id, m := range model {
		has, known, want := mirror(m)
		got, ok := seen[id]
		if !has {
			if ok {
				return fmt.Errorf("gear %d: unexpected %s %+v\n%s", id, name, got, s.BlockDump(id))
			}
			continue
		}
		carrying++
		if !ok {
			return fmt.Errorf("gear %d: %s missing\n%s", id, name, s.BlockDump(id))
		}
		if known && got != want {
			return fmt.Errorf("gear %d: %s is %+v, want %+v\n%s", id, name, got, want, s.BlockDump(id))
		}
	}
	if len(seen) != carrying {
		return fmt.Errorf("%s scan saw %d gears, model carries %d", name, len(seen), carrying)
	}
	return nil
}
