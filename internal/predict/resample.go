package predict

import (
	"math/rand"
	"sort"
)

// Resampler is the seedable oversampling stage used by TrainBalanced. It is
// pure apart from its own rand source, so a fixed seed reproduces the exact
// training order.
type Resampler struct {
	rng *rand.Rand
}

// NewResampler creates a resampler with its own seeded source.
func NewResampler(seed int64) *Resampler {
	return &Resampler{rng: rand.New(rand.NewSource(seed))}
}

// Rebalance oversamples minority classes with replacement until every class
// matches the majority count, then shuffles. The input is never modified.
func (r *Resampler) Rebalance(samples []Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}

	byClass := map[int][]Sample{}
	for _, s := range samples {
		byClass[s.Class] = append(byClass[s.Class], s)
	}

	// Deterministic class order so a fixed seed reproduces the resample.
	classes := make([]int, 0, len(byClass))
	maxCount := 0
	for class, group := range byClass {
		classes = append(classes, class)
		if len(group) > maxCount {
			maxCount = len(group)
		}
	}
	sort.Ints(classes)

	out := make([]Sample, 0, maxCount*len(byClass))
	for _, class := range classes {
		group := byClass[class]
		out = append(out, group...)
		for i := len(group); i < maxCount; i++ {
			out = append(out, group[r.rng.Intn(len(group))])
		}
	}

	r.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
