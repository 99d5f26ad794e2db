// Profiling:
// go build ./profile/iterate
// go tool pprof -http=":8000" -nodefraction=0.001 ./iterate mem.pprof

package main

import (
	"github.com/pkg/profile"
	"go.uber.org/zap"

	"gearstash/internal/geardb"
)

type comp1 struct {
	v int64
	w int64
}

type comp2 struct {
	v int64
	w int64
}

func main() {
	rounds := 50
	iters := 10000
	gears := 5000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, gears)
	p.Stop()
}

func run(rounds, iters, gears int) {
	for r := 0; r < rounds; r++ {
		s := geardb.NewStore(zap.NewNop())
		geardb.Register[comp1](s)
		geardb.Register[comp2](s)

		for i := 1; i <= gears; i++ {
			geardb.Attach(s, geardb.GearId(i), comp1{v: int64(i), w: 1})
			geardb.Attach(s, geardb.GearId(i), comp2{})
		}
		// the comp2 columns arrive unwritten, initialize them in place
		geardb.Each1(s, func(_ geardb.GearId, c *comp2) { c.v = 2; c.w = 3 })

		for it := 0; it < iters; it++ {
			geardb.Each2(s, func(_ geardb.GearId, a *comp1, b *comp2) {
				a.v += b.v
				a.w += b.w
			})
		}
	}
}
