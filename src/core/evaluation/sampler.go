package evaluation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-logr/logr"
)

// Stratification ratios over the benchmark buckets. The two preset totals use
// hand-picked counts; any other total is scaled from the T=100 ratios.
var (
	bucketRatios = map[string]float64{
		"factoid":    0.40,
		"reasoning":  0.24,
		"comparison": 0.16,
		"multi_hop":  0.12,
		"negation":   0.08,
	}

	presetPlans = map[int]map[string]int{
		25: {
			"factoid":    10,
			"reasoning":  6,
			"comparison": 4,
			"multi_hop":  3,
			"negation":   2,
		},
		100: {
			"factoid":    40,
			"reasoning":  24,
			"comparison": 16,
			"multi_hop":  12,
			"negation":   8,
		},
	}
)

// Sampler draws a stratified benchmark set from the question pool.
type Sampler struct {
	pool   QuestionPool
	logger logr.Logger
}

func NewSampler(pool QuestionPool, logger logr.Logger) *Sampler {
	return &Sampler{pool: pool, logger: logger}
}

// SamplePlan returns the per-bucket counts for a requested total. Preset
// totals use their exact plan; other totals scale the ratios, round each
// bucket to the nearest integer and absorb the rounding drift in the
// largest-ratio bucket, clamped to zero.
func SamplePlan(total int) map[string]int {
	if plan, ok := presetPlans[total]; ok {
		cloned := make(map[string]int, len(plan))
		for bucket, count := range plan {
			cloned[bucket] = count
		}
		return cloned
	}

	plan := make(map[string]int, len(bucketRatios))
	sum := 0
	largest := largestBucket()
	for bucket, ratio := range bucketRatios {
		count := int(math.Round(float64(total) * ratio))
		plan[bucket] = count
		sum += count
	}

	// Rounding drift lands in the largest bucket; a skewed small total can
	// push it negative, so clamp and rebalance instead of requesting a
	// negative sample.
	plan[largest] += total - sum
	if plan[largest] < 0 {
		deficit := -plan[largest]
		plan[largest] = 0
		for _, bucket := range bucketNames() {
			if deficit == 0 {
				break
			}
			if bucket == largest {
				continue
			}
			take := plan[bucket]
			if take > deficit {
				take = deficit
			}
			plan[bucket] -= take
			deficit -= take
		}
	}
	return plan
}

// Sample draws up to total pairs across the buckets. Buckets with too few
// rows contribute what they have; pairs with an empty question or answer are
// dropped. The returned total may therefore be below the request.
func (s *Sampler) Sample(ctx context.Context, total int) ([]QAPair, error) {
	if total <= 0 {
		return nil, fmt.Errorf("sample total must be positive, got %d", total)
	}

	plan := SamplePlan(total)
	planned := 0
	for _, count := range plan {
		planned += count
	}
	if planned != total {
		s.logger.Info("sample plan does not cover requested total",
			"requested", total, "planned", planned)
	}

	var pairs []QAPair
	for _, bucket := range bucketNames() {
		count := plan[bucket]
		if count <= 0 {
			continue
		}
		rows, err := s.pool.Sample(ctx, bucket, count)
		if err != nil {
			return nil, fmt.Errorf("failed to sample bucket %s: %w", bucket, err)
		}
		if len(rows) < count {
			s.logger.Info("bucket underfilled", "bucket", bucket,
				"requested", count, "available", len(rows))
		}
		for _, row := range rows {
			if row.Question == "" || row.Answer == "" {
				continue
			}
			pairs = append(pairs, row)
		}
	}
	return pairs, nil
}

func bucketNames() []string {
	names := make([]string, 0, len(bucketRatios))
	for bucket := range bucketRatios {
		names = append(names, bucket)
	}
	sort.Strings(names)
	return names
}

func largestBucket() string {
	best := ""
	bestRatio := -1.0
	for _, bucket := range bucketNames() {
		if ratio := bucketRatios[bucket]; ratio > bestRatio {
			best = bucket
			bestRatio = ratio
		}
	}
	return best
}
