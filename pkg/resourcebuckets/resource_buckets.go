package resourcebuckets

import (
	"context"
	"sync"
)

// ResourceBuckets manages resource capacities.  Workers running go test
// processes acquire a share of a bucket before starting and release it when
// the process exits, so no bucket runs more than its capacity at once.
type ResourceBuckets struct {
	buckets    []int
	capacity   int
	nextBucket int
	cond       *sync.Cond
}

// ResourceUsage represents a usage of resource.
type ResourceUsage struct {
	Index int
	Usage int
}

// NewResourceBuckets creates a new ResourceBuckets with buckets, each of which
// has the same size of capacity.
func NewResourceBuckets(size, capacityPerBucket int) *ResourceBuckets {
	if size < 1 {
		size = 1
	}
	if capacityPerBucket < 1 {
		capacityPerBucket = 1
	}
	buckets := make([]int, size)
	for i := range buckets {
		buckets[i] = capacityPerBucket
	}
	return &ResourceBuckets{
		buckets:  buckets,
		capacity: capacityPerBucket,
		cond:     sync.NewCond(&sync.Mutex{}),
	}
}

// Acquire acquires the given size of usage.  It blocks until the usage fits
// into a bucket or ctx is done.  A usage larger than a whole bucket is capped
// to the bucket capacity.
func (rb *ResourceBuckets) Acquire(
	ctx context.Context, usage int,
) (*ResourceUsage, error) {
	if usage > rb.capacity {
		usage = rb.capacity
	}
	stop := context.AfterFunc(ctx, func() {
		rb.cond.L.Lock()
		defer rb.cond.L.Unlock()
		rb.cond.Broadcast()
	})
	defer stop()

	rb.cond.L.Lock()
	defer rb.cond.L.Unlock()
	for rb.buckets[rb.nextBucket] < usage {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rb.cond.Wait()
	}
	ru := &ResourceUsage{Index: rb.nextBucket, Usage: usage}
	rb.buckets[ru.Index] -= ru.Usage
	rb.setNextBucket()
	return ru, nil
}

// Release releases the given resource usage.
func (rb *ResourceBuckets) Release(ru *ResourceUsage) {
	rb.cond.L.Lock()
	defer rb.cond.L.Unlock()
	rb.buckets[ru.Index] += ru.Usage
	ru.Usage = 0
	rb.setNextBucket()
	rb.cond.Broadcast()
}

// setNextBucket points rb.nextBucket at the bucket with the most free
// capacity.
// CAVEAT: rb.cond.L must be locked when this is called.
func (rb *ResourceBuckets) setNextBucket() {
	nextBucket := 0
	for i, b := range rb.buckets {
		if rb.buckets[nextBucket] < b {
			nextBucket = i
		}
	}
	rb.nextBucket = nextBucket
}
