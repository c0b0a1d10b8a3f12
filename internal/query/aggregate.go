package query

import (
	"github.com/buildingvitals/vitalstore/internal/models"
)

// Aggregate reduces samples to one value per point across the whole range.
// "none" returns the input unchanged. The reduced sample carries the
// timestamp of the point's last contributing sample.
func Aggregate(samples []models.Sample, aggregation string) []models.Sample {
	if aggregation == "" || aggregation == "none" || len(samples) == 0 {
		return samples
	}

	type acc struct {
		sum    float64
		min    float64
		max    float64
		count  int64
		lastTs int64
		siteID string
	}

	accs := make(map[string]*acc)
	var order []string

	for _, s := range samples {
		a, ok := accs[s.PointName]
		if !ok {
			a = &acc{min: s.Value, max: s.Value, siteID: s.SiteID}
			accs[s.PointName] = a
			order = append(order, s.PointName)
		}

		a.sum += s.Value
		a.count++
		if s.Value < a.min {
			a.min = s.Value
		}
		if s.Value > a.max {
			a.max = s.Value
		}
		if s.Timestamp > a.lastTs {
			a.lastTs = s.Timestamp
		}
	}

	out := make([]models.Sample, 0, len(accs))
	for _, name := range order {
		a := accs[name]

		var value float64
		switch aggregation {
		case "avg":
			value = a.sum / float64(a.count)
		case "min":
			value = a.min
		case "max":
			value = a.max
		case "sum":
			value = a.sum
		case "count":
			value = float64(a.count)
		default:
			return samples
		}

		out = append(out, models.Sample{
			SiteID:    a.siteID,
			PointName: name,
			Timestamp: a.lastTs,
			Value:     value,
		})
	}

	models.SortSamplesAscending(out)
	return out
}
