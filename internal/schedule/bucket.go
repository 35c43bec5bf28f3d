package schedule

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/Hunger4Crypto-Official/badge-engine/internal/domain/model"
)

// BucketScheduler shards the account population across time. Bucket
// selection is purely a function of wall-clock time, so any replica picks
// the same shard for the same window without coordination and the full
// population is covered once every BucketCount*Interval. No cursor, no
// per-account bookkeeping.
type BucketScheduler struct {
	buckets  int
	interval time.Duration
}

func NewBucketScheduler(buckets int, interval time.Duration) BucketScheduler {
	if buckets <= 0 {
		buckets = 1
	}
	return BucketScheduler{buckets: buckets, interval: interval}
}

// ActiveBucket returns the bucket index for the window containing now.
func (b BucketScheduler) ActiveBucket(now time.Time) int {
	return int((now.UnixMilli() / b.interval.Milliseconds()) % int64(b.buckets))
}

// AssignBucket maps an account id to its bucket. Numeric ids (platform
// snowflakes) use the low 24 bits of the parsed value; anything else falls
// back to FNV-1a. Both are stable across replicas and restarts.
func (b BucketScheduler) AssignBucket(accountID string) int {
	if n, err := strconv.ParseUint(accountID, 10, 64); err == nil {
		return int((n & 0xFFFFFF) % uint64(b.buckets))
	}
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(b.buckets))
}

// Shard filters accounts down to the bucket active at now.
func (b BucketScheduler) Shard(accounts []model.Account, now time.Time) []model.Account {
	active := b.ActiveBucket(now)
	var shard []model.Account
	for _, a := range accounts {
		if b.AssignBucket(a.ID) == active {
			shard = append(shard, a)
		}
	}
	return shard
}

// CoverageWindow is how long a full population sweep takes.
func (b BucketScheduler) CoverageWindow() time.Duration {
	return time.Duration(b.buckets) * b.interval
}
