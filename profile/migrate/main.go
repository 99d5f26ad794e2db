// Profiling:
// go build ./profile/migrate
// go tool pprof -http=":8000" -nodefraction=0.001 ./migrate cpu.pprof

package main

import (
	"math/rand"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"gearstash/internal/geardb"
)

type body struct {
	x, y   float32
	dx, dy float32
}

type flag struct {
	on uint8
}

func main() {
	gears := 2000
	ops := 2000000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(gears, ops)
	p.Stop()
}

func run(gears, ops int) {
	s := geardb.NewStore(zap.NewNop())
	geardb.Register[body](s)
	geardb.Register[flag](s)

	rnd := rand.New(rand.NewSource(1))
	for op := 0; op < ops; op++ {
		id := geardb.GearId(rnd.Intn(gears) + 1)
		switch rnd.Intn(4) {
		case 0:
			geardb.Attach(s, id, body{x: float32(id)})
		case 1:
			geardb.Attach(s, id, flag{on: 1})
		case 2:
			geardb.Detach[flag](s, id)
		case 3:
			s.RemoveAll(id)
		}
	}
}
