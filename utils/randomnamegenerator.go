package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// NameGenerator hands out deterministic unique names. Names already taken
// by the source data are registered with Reserve so they are never produced.
type NameGenerator struct {
	used map[string]struct{}
	rng  *rand.Rand
}

func NewNameGenerator() *NameGenerator {
	return &NameGenerator{
		used: make(map[string]struct{}),
		rng:  rand.New(rand.NewSource(0)),
	}
}

func (ng *NameGenerator) Reserve(name string) {
	ng.used[name] = struct{}{}
}

func (ng *NameGenerator) Name() string {
	randomdata.CustomRand(ng.rng)
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := ng.used[name]; !exists {
			ng.used[name] = struct{}{}
			return name
		}
	}
}
