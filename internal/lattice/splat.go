package lattice

import (
	"fmt"
	"math"
)

// Splat accumulates value into the vertices of the simplex enclosing
// position, weighted by barycentric coordinates, and records one replay
// entry per vertex. position must hold d coordinates and value vd.
//
// The explicit T(...) conversions around products keep them from being
// fused into multiply-adds, so output is reproducible across platforms.
func (l *Lattice[T]) Splat(position, value []T) error {
	d := l.d
	if len(position) < d || len(value) < l.vd {
		return fmt.Errorf("%w: position %d (want %d), value %d (want %d)",
			ErrVectorLength, len(position), d, len(value), l.vd)
	}

	elevated := l.elevated
	greedy := l.greedy
	rank := l.rank
	bary := l.barycentric
	sf := l.scale

	// Rotate into the hyperplane: the last coordinate first, the rest by
	// back-substitution.
	elevated[d] = T(T(-d)*position[d-1]) * sf[d-1]
	for i := d - 1; i > 0; i-- {
		down := T(T(T(i)*position[i-1]) * sf[i-1])
		up := T(T(T(i+2)*position[i]) * sf[i])
		elevated[i] = T(elevated[i+1]-down) + up
	}
	elevated[0] = elevated[1] + T(T(2*position[0])*sf[0])

	// Nearest remainder-0 point, coordinate by coordinate.
	// scale and the rounding run in float32 precision for every T.
	d1 := T(d + 1)
	scale := T(float32(1) / float32(d+1))
	sum := 0
	for i := 0; i <= d; i++ {
		v := float64(float32(elevated[i] * scale))
		up := T(math.Ceil(v)) * d1
		down := T(math.Floor(v)) * d1
		if up-elevated[i] < elevated[i]-down {
			greedy[i] = int16(int32(up))
		} else {
			greedy[i] = int16(int32(down))
		}
		sum += int(greedy[i])
	}
	sum /= d + 1

	// Rank differential: the permutation from this simplex to the canonical one.
	clear(rank)
	for i := 0; i < d; i++ {
		for j := i + 1; j <= d; j++ {
			if elevated[i]-T(greedy[i]) < elevated[j]-T(greedy[j]) {
				rank[i]++
			} else {
				rank[j]++
			}
		}
	}

	switch {
	case sum > 0:
		// Off the hyperplane on the high side: bring down the coordinates
		// with the smallest differential.
		for i := 0; i <= d; i++ {
			if rank[i] >= d+1-sum {
				greedy[i] -= int16(d + 1)
				rank[i] += sum - (d + 1)
			} else {
				rank[i] += sum
			}
		}
	case sum < 0:
		// Low side: bring up the coordinates with the largest differential.
		for i := 0; i <= d; i++ {
			if rank[i] < -sum {
				greedy[i] += int16(d + 1)
				rank[i] += d + 1 + sum
			} else {
				rank[i] += sum
			}
		}
	}

	clear(bary)
	for i := 0; i <= d; i++ {
		delta := T((elevated[i] - T(greedy[i])) * scale)
		bary[d-rank[i]] += delta
		bary[d+1-rank[i]] -= delta
	}
	bary[0] += 1 + bary[d+1]

	key := l.key
	for remainder := 0; remainder <= d; remainder++ {
		// The last coordinate is implied by the zero sum and not stored.
		row := l.canonical[remainder*(d+1):]
		for i := 0; i < d; i++ {
			key[i] = greedy[i] + row[rank[i]]
		}

		off, err := l.table.LookupOrInsert(key)
		if err != nil {
			return err
		}

		w := bary[remainder]
		val := l.table.Value(off)
		for i := range val {
			val[i] += T(w * value[i])
		}

		l.replay = append(l.replay, replayEntry[T]{offset: off, weight: w})
	}

	return nil
}

// Weights returns the barycentric weights computed by the most recent Splat,
// one per simplex vertex in remainder order.
func (l *Lattice[T]) Weights() []T {
	return l.barycentric[:l.d+1]
}
