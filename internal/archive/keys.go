package archive

import (
	"fmt"
	"time"
)

// FileExt is the archive segment file extension
const FileExt = "vseg"

// DayKey builds the object key for a site's daily archive file:
// timeseries/{site_id}/{YYYY}/{MM}/{DD}.vseg
func DayKey(siteID string, day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("timeseries/%s/%04d/%02d/%02d.%s",
		siteID, day.Year(), int(day.Month()), day.Day(), FileExt)
}

// SitePrefix returns the key prefix holding all archive files for a site
func SitePrefix(siteID string) string {
	return fmt.Sprintf("timeseries/%s/", siteID)
}
