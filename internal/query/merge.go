package query

import "github.com/buildingvitals/vitalstore/internal/models"

// Merge combines hot and cold results, deduplicating on (point, timestamp).
// When both tiers carry the same key, preferHot picks the winner. The result
// is sorted ascending by timestamp.
func Merge(hot, cold []models.Sample, preferHot bool) []models.Sample {
	if len(cold) == 0 && len(hot) == 0 {
		return nil
	}

	merged := make(map[models.SampleKey]models.Sample, len(hot)+len(cold))

	first, second := cold, hot
	if !preferHot {
		first, second = hot, cold
	}
	for _, s := range first {
		merged[s.Key()] = s
	}
	for _, s := range second {
		merged[s.Key()] = s
	}

	out := make([]models.Sample, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	models.SortSamplesAscending(out)

	return out
}
