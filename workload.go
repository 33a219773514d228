package main

import (
	"math/rand"

	"github.com/minirel/btindex/index"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

// ExecuteWorkload runs a mixed distribution of ops against an index already
// loaded with keys [0, loaded). Writes insert fresh keys past the loaded
// range (the engines store unique keys), reads and scans hit the loaded
// range.
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops, loaded int) int {
	nextKey := loaded
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int32(rand.Intn(loaded))

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _ = idx.Get(key)
			} else {
				idx.Insert(int32(nextKey), index.RecordID{Pid: int32(nextKey), Sid: 0})
				nextKey++
			}
		case OLAP:
			if choice < 10 {
				_, _ = idx.Get(key)
			} else {
				idx.Insert(int32(nextKey), index.RecordID{Pid: int32(nextKey), Sid: 0})
				nextKey++
			}
		case Reporting:
			it, _ := idx.Range(key, key+100)
			if it != nil {
				for it.Next() {
				}
				it.Close()
			}
		}
	}
	return nextKey
}
