package schedule

import "time"

// BucketType identifies the kind of scheduling window a dispensation is keyed
// to. Together with the bucket start it forms the uniqueness key enforced by
// the store: at most one dispensation per patient/medication per window.
type BucketType string

const (
	BucketDay   BucketType = "DAY"
	BucketMonth BucketType = "MONTH"
)

// BucketFor returns the canonical window key for a dispensation at t. Monthly
// medications bucket by calendar month; everything else, twice-daily
// included, buckets by calendar day (the twice-daily rule is a count cap, so
// two legitimate doses share one day bucket).
func BucketFor(t time.Time, f MedicationFrequency) (BucketType, time.Time) {
	if f == Monthly {
		return BucketMonth, StartOfMonth(t)
	}
	return BucketDay, StartOfDay(t)
}
