package utils

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	const total = 1013

	var sum int64
	var groups int
	err := GroupWorkParallel(
		context.Background(),
		total,
		func(groupSize int) {
			groups = groupSize
		},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				atomic.AddInt64(&sum, int64(workNum))
			}, nil
		},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, groups, test.ShouldEqual, ParallelFactor)
	// Every index in [0, total) visited exactly once.
	test.That(t, sum, test.ShouldEqual, int64(total*(total-1)/2))
}

func TestGroupWorkParallelMerge(t *testing.T) {
	const total = 97

	var mu sync.Mutex
	counts := make([]int, 0, ParallelFactor)
	err := GroupWorkParallel(
		context.Background(),
		total,
		func(groupSize int) {},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			seen := 0
			return func(memberNum, workNum int) {
					seen++
				}, func() {
					mu.Lock()
					counts = append(counts, seen)
					mu.Unlock()
				}
		},
	)
	test.That(t, err, test.ShouldBeNil)

	visited := 0
	for _, c := range counts {
		visited += c
	}
	test.That(t, visited, test.ShouldEqual, total)
}

func TestGroupWorkParallelN(t *testing.T) {
	const total = 10

	var mu sync.Mutex
	var ranges [][2]int
	err := GroupWorkParallelN(
		context.Background(),
		3,
		total,
		func(groupSize int) {
			test.That(t, groupSize, test.ShouldEqual, 3)
		},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			mu.Lock()
			ranges = append(ranges, [2]int{from, to})
			mu.Unlock()
			return nil, nil
		},
	)
	test.That(t, err, test.ShouldBeNil)

	covered := 0
	for _, r := range ranges {
		covered += r[1] - r[0]
	}
	test.That(t, len(ranges), test.ShouldEqual, 3)
	test.That(t, covered, test.ShouldEqual, total)
}

func TestParallelForEachPixel(t *testing.T) {
	size := image.Point{X: 37, Y: 29}
	var hits [37][29]int32
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt32(&hits[x][y], 1)
	})
	for x := 0; x < size.X; x++ {
		for y := 0; y < size.Y; y++ {
			test.That(t, hits[x][y], test.ShouldEqual, int32(1))
		}
	}
}
