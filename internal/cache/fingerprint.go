package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/cespare/xxhash/v2"
)

// Fingerprint produces a stable cache key component for a query. Point name
// order must not change the key, so names are sorted before hashing.
func Fingerprint(req *models.QueryRequest) string {
	points := make([]string, len(req.PointNames))
	copy(points, req.PointNames)
	sort.Strings(points)

	var b strings.Builder
	b.WriteString(req.SiteID)
	b.WriteByte('|')
	b.WriteString(strings.Join(points, ","))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(req.StartTimeParsed.UnixMilli(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(req.EndTimeParsed.UnixMilli(), 10))
	b.WriteByte('|')
	b.WriteString(req.Aggregation)

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Key builds the full store key for a query
func Key(req *models.QueryRequest) string {
	return "query:" + req.SiteID + ":" + Fingerprint(req)
}
