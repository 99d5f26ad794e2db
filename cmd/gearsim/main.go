package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gearstash/internal/config"
	"gearstash/internal/geardb"
)

const (
	statsEvery = 50
	wearLimit  = 600
)

type spin struct {
	angle float32
	rpm   float32
}

type drive struct {
	ratio float32
}

type wear struct {
	ticks uint32
}

type serial struct {
	id uuid.UUID
}

// simulation spins a population of gears: every tick advances angles, locks
// driven gears to the input shaft, accumulates wear and retires worn gears,
// while random churn keeps attach/detach migrations flowing.
type simulation struct {
	store *geardb.Store
	rnd   *rand.Rand
	ids   int

	// columns attached to an already-populated gear arrive unwritten, so
	// their first values go in through a write query on the next flush
	pendingSpin  map[geardb.GearId]spin
	pendingWear  map[geardb.GearId]wear
	pendingDrive map[geardb.GearId]drive

	ticks   uint64
	spawned int
	retired int

	sugar *zap.SugaredLogger
}

func newSimulation(cfg *config.Config, logger *zap.Logger) *simulation {
	s := geardb.NewStore(logger)
	geardb.Register[serial](s)
	geardb.Register[spin](s)
	geardb.Register[wear](s)
	geardb.Register[drive](s)

	sim := &simulation{
		store:        s,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		ids:          cfg.GearCount,
		pendingSpin:  make(map[geardb.GearId]spin),
		pendingWear:  make(map[geardb.GearId]wear),
		pendingDrive: make(map[geardb.GearId]drive),
		sugar:        logger.Sugar(),
	}
	for id := 1; id <= cfg.GearCount/2; id++ {
		sim.spawn(geardb.GearId(id))
	}
	return sim
}

// spawn mints a gear. The serial goes in on the fresh-gear path and is
// stored as supplied; the spin and wear columns are only relocated space
// until the flush writes them.
func (s *simulation) spawn(id geardb.GearId) {
	s.store.RemoveAll(id)
	geardb.Attach(s.store, id, serial{id: uuid.New()})
	geardb.Attach(s.store, id, spin{})
	geardb.Attach(s.store, id, wear{})
	s.pendingSpin[id] = spin{rpm: 60 + s.rnd.Float32()*540}
	s.pendingWear[id] = wear{}
	s.spawned++
}

func (s *simulation) churn() {
	id := geardb.GearId(s.rnd.Intn(s.ids) + 1)
	switch s.rnd.Intn(6) {
	case 0:
		s.spawn(id)
	case 1, 2:
		d := drive{ratio: 1 + s.rnd.Float32()*3}
		geardb.Attach(s.store, id, d)
		s.pendingDrive[id] = d
	case 3:
		geardb.Detach[drive](s.store, id)
		delete(s.pendingDrive, id)
	case 4:
		// idle tick
	case 5:
		s.store.RemoveAll(id)
		delete(s.pendingSpin, id)
		delete(s.pendingWear, id)
		delete(s.pendingDrive, id)
		s.retired++
	}
}

func (s *simulation) flush() {
	if len(s.pendingSpin) != 0 {
		geardb.Each1(s.store, func(id geardb.GearId, v *spin) {
			if p, ok := s.pendingSpin[id]; ok {
				*v = p
			}
		})
		s.pendingSpin = make(map[geardb.GearId]spin)
	}
	if len(s.pendingWear) != 0 {
		geardb.Each1(s.store, func(id geardb.GearId, v *wear) {
			if p, ok := s.pendingWear[id]; ok {
				*v = p
			}
		})
		s.pendingWear = make(map[geardb.GearId]wear)
	}
	if len(s.pendingDrive) != 0 {
		geardb.Each1(s.store, func(id geardb.GearId, v *drive) {
			if p, ok := s.pendingDrive[id]; ok {
				*v = p
			}
		})
		s.pendingDrive = make(map[geardb.GearId]drive)
	}
}

func (s *simulation) tick(dt float32) {
	s.ticks++
	s.churn()
	s.flush()

	spinning := 0
	geardb.Each1(s.store, func(_ geardb.GearId, v *spin) {
		v.angle += v.rpm * 6 * dt // degrees per tick at this rpm
		if v.angle >= 360 {
			v.angle -= 360
		}
		spinning++
	})

	driven := 0
	geardb.Each2(s.store, func(_ geardb.GearId, v *spin, d *drive) {
		v.rpm = 60 * d.ratio // driven gears lock to the input shaft
		driven++
	})

	var worn []geardb.GearId
	geardb.Each2(s.store, func(id geardb.GearId, _ *spin, w *wear) {
		w.ticks++
		if w.ticks >= wearLimit {
			worn = append(worn, id)
		}
	})
	// query callbacks must not mutate the store, so retire afterwards
	for _, id := range worn {
		s.store.RemoveAll(id)
		s.retired++
	}

	if s.ticks%statsEvery == 0 {
		s.sugar.Infow("gearbox",
			"tick", s.ticks,
			"spinning", spinning,
			"driven", driven,
			"spawned", s.spawned,
			"retired", s.retired,
		)
	}
}

func (s *simulation) run(ctx context.Context, interval time.Duration) {
	s.sugar.Infow("gearbox started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := float32(interval.Seconds())
	for {
		select {
		case <-ctx.Done():
			s.sugar.Infow("gearbox stopped",
				"ticks", s.ticks,
				"spawned", s.spawned,
				"retired", s.retired,
			)
			return
		case <-ticker.C:
			s.tick(dt)
		}
	}
}

func main() {
	cfg := config.NewConfig()

	logger, err := zap.NewDevelopment() // or NewProduction
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	sim := newSimulation(cfg, logger)
	sim.run(ctx, cfg.TickInterval)
}
