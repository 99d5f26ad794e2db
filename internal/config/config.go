package config

import (
	"flag"
	"time"
)

type Config struct {
	RandomSeed  int64
	OpsCount    int
	GearCount   int
	VerifyEvery int

	TickInterval time.Duration
	Verbose      bool
}

func NewConfig() *Config {
	s := flag.Int64("RANDOM_SEED", 0, "checker seed, 0 picks the current time")
	o := flag.Int("OPS_COUNT", 100000, "checker operations per run")
	g := flag.Int("GEAR_COUNT", 500, "gear id range for generated operations")
	v := flag.Int("VERIFY_EVERY", 1000, "operations between full verifications")
	i := flag.Duration("TICK_INTERVAL", time.Millisecond*100, "simulation tick interval")
	b := flag.Bool("VERBOSE", false, "development logging")
	flag.Parse()

	return &Config{
		RandomSeed:   *s,
		OpsCount:     *o,
		GearCount:    *g,
		VerifyEvery:  *v,
		TickInterval: *i,
		Verbose:      *b,
	}
}
