package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyphar/blobvault/metrics"
)

func TestIncDecByAndGet(t *testing.T) {
	reg := metrics.NewRegistry()

	reg.Inc(metrics.BlobCount)
	reg.IncBy(metrics.BlobCount, 4)
	assert.EqualValues(t, 5, reg.Get(metrics.BlobCount))

	reg.Dec(metrics.BlobCount)
	reg.DecBy(metrics.BlobCount, 2)
	assert.EqualValues(t, 2, reg.Get(metrics.BlobCount))
}

func TestGetUnknownCounterIsZero(t *testing.T) {
	reg := metrics.NewRegistry()
	assert.EqualValues(t, 0, reg.Get("never-touched"))
}

func TestSetOverwrites(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(metrics.ByteCount)
	reg.Set(metrics.ByteCount, 100)
	assert.EqualValues(t, 100, reg.Get(metrics.ByteCount))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Set(metrics.BlobCount, 3)

	snap := reg.Snapshot()
	assert.EqualValues(t, 3, snap[metrics.BlobCount])

	reg.Set(metrics.BlobCount, 99)
	assert.EqualValues(t, 3, snap[metrics.BlobCount], "snapshot must not observe later mutation")
	assert.EqualValues(t, 99, reg.Get(metrics.BlobCount))
}

func TestZeroValueRegistryUsable(t *testing.T) {
	var reg metrics.Registry
	reg.Inc(metrics.BlobCount)
	assert.EqualValues(t, 1, reg.Get(metrics.BlobCount))
}
