package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// builder grows a tree depth-first. It holds scratch buffers reused across
// nodes and is not safe for concurrent use.
type builder struct {
	dt      *DecisionTreeClassifier
	x       *mat.Dense
	yIdx    []int
	weights []float64
	rng     *rand.Rand

	sorted   []valueRow
	missing  []int
	features []int
}

type valueRow struct {
	value float64
	row   int
}

type split struct {
	feature   int
	threshold float64
	score     float64 // weighted child impurity, lower is better
}

// build adds the node for samples and its subtree, returning its index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	counts, weight := b.classCounts(samples)
	impurity := b.impurity(counts, weight)

	idx := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		feature:  noFeature,
		depth:    depth,
		nSamples: len(samples),
		weight:   weight,
		impurity: impurity,
		value:    normalize(counts, weight),
	})

	isLeaf := (dt.maxDepth >= 0 && depth >= dt.maxDepth) ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		impurity <= impurityEpsilon
	if isLeaf {
		return idx
	}

	best, ok := b.bestSplit(samples, counts, weight)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, i := range samples {
		v := b.x.At(i, best.feature)
		if !math.IsNaN(v) && v <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &dt.nodes[idx]
	n.feature = best.feature
	n.threshold = best.threshold
	n.left = l
	n.right = r
	return idx
}

// bestSplit examines features in random order and returns the split with the
// lowest weighted child impurity. A split is accepted even when it does not
// reduce impurity, as long as both children satisfy min_samples_leaf.
func (b *builder) bestSplit(samples []int, total []float64, totalWeight float64) (split, bool) {
	dt := b.dt
	nFeatures := dt.nFeatures_
	if cap(b.features) < nFeatures {
		b.features = make([]int, nFeatures)
	}
	b.features = b.features[:nFeatures]
	for j := range b.features {
		b.features[j] = j
	}

	maxFeatures := dt.maxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	best := split{feature: noFeature, score: math.Inf(1)}
	visited := 0
	for k := 0; k < nFeatures; k++ {
		// Keep drawing past maxFeatures until a usable feature is found.
		if visited >= maxFeatures && best.feature != noFeature {
			break
		}
		// Fisher-Yates step
		r := k + b.rng.IntN(nFeatures-k)
		b.features[k], b.features[r] = b.features[r], b.features[k]
		f := b.features[k]

		visited++
		if s, ok := b.splitFeature(samples, f, total, totalWeight); ok && s.score < best.score {
			best = s
		}
	}
	return best, best.feature != noFeature
}

// splitFeature scans the thresholds of feature f. Rows with NaN stay on the
// right; the extra candidate threshold +Inf separates them from every
// non-missing row.
func (b *builder) splitFeature(samples []int, f int, total []float64, totalWeight float64) (split, bool) {
	dt := b.dt
	b.sorted = b.sorted[:0]
	b.missing = b.missing[:0]
	for _, i := range samples {
		v := b.x.At(i, f)
		if math.IsNaN(v) {
			b.missing = append(b.missing, i)
		} else {
			b.sorted = append(b.sorted, valueRow{value: v, row: i})
		}
	}
	nonMissing := len(b.sorted)
	if nonMissing == 0 {
		return split{}, false
	}
	sort.Slice(b.sorted, func(a, c int) bool { return b.sorted[a].value < b.sorted[c].value })

	nClasses := dt.nClasses_
	leftCounts := make([]float64, nClasses)
	rightCounts := append([]float64(nil), total...)
	leftWeight, rightWeight := 0.0, totalWeight
	n := len(samples)

	best := split{feature: noFeature, score: math.Inf(1)}
	for p := 0; p < nonMissing; p++ {
		i := b.sorted[p].row
		w := b.weights[i]
		k := b.yIdx[i]
		leftCounts[k] += w
		rightCounts[k] -= w
		leftWeight += w
		rightWeight -= w

		var threshold float64
		if p+1 < nonMissing {
			cur, next := b.sorted[p].value, b.sorted[p+1].value
			if next <= cur {
				continue
			}
			threshold = cur/2 + next/2
			if threshold == next || math.IsInf(threshold, 0) {
				threshold = cur
			}
		} else {
			if len(b.missing) == 0 {
				break
			}
			threshold = math.Inf(1)
		}

		nLeft := p + 1
		nRight := n - nLeft
		if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
			continue
		}

		score := leftWeight*b.impurity(leftCounts, leftWeight) + rightWeight*b.impurity(rightCounts, clampZero(rightWeight))
		if score < best.score {
			best = split{feature: f, threshold: threshold, score: score}
		}
	}
	return best, best.feature != noFeature
}

func (b *builder) classCounts(samples []int) ([]float64, float64) {
	counts := make([]float64, b.dt.nClasses_)
	weight := 0.0
	for _, i := range samples {
		w := b.weights[i]
		counts[b.yIdx[i]] += w
		weight += w
	}
	return counts, weight
}

func (b *builder) impurity(counts []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	switch b.dt.criterion {
	case "entropy":
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / weight
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / weight
			g -= p * p
		}
		return g
	}
}

func normalize(counts []float64, weight float64) []float64 {
	out := make([]float64, len(counts))
	if weight <= 0 {
		return out
	}
	for k, c := range counts {
		out[k] = c / weight
	}
	return out
}

// clampZero absorbs the rounding left after subtracting every weight.
func clampZero(w float64) float64 {
	if w < 1e-12 {
		return 0
	}
	return w
}
