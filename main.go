package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/minirel/btindex/index"
	"github.com/minirel/btindex/index/bptree"
	"github.com/minirel/btindex/index/lsm"
	"github.com/minirel/btindex/pager"
)

const scale = 200000

func main() {
	_ = os.Mkdir("results", 0755)

	f, err := os.Create(filepath.Join("results", "index_bench.csv"))
	if err != nil {
		log.Fatalf("create csv: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

	var results []BenchResult

	// --- 1. The disk B+ tree index ---
	idxPath := filepath.Join("results", "bench.idx")
	bpt, err := bptree.Open(idxPath, pager.ModeWrite)
	if err != nil {
		log.Fatalf("open b+ tree index: %v", err)
	}
	results = append(results, runSuite(w, "BPlusTree", bpt, scale)...)
	bpt.Close()
	os.Remove(idxPath)

	// --- 2. Pebble as the LSM baseline ---
	lsmPath := filepath.Join("results", "bench_lsm")
	l, err := lsm.Open(lsmPath)
	if err != nil {
		log.Fatalf("open lsm baseline: %v", err)
	}
	results = append(results, runSuite(w, "LSM-Pebble", l, scale)...)
	l.Close()
	os.RemoveAll(lsmPath)

	w.Flush()

	if err := plotLatency(results, filepath.Join("results", "latency.png")); err != nil {
		log.Fatalf("plot: %v", err)
	}
	fmt.Println("Benchmark complete. Data ready for analysis.")
}

func runSuite(w *csv.Writer, name string, idx index.Index, n int) []BenchResult {
	fmt.Printf("Testing %s\n", name)
	var results []BenchResult
	record := func(res BenchResult) {
		Record(w, res)
		results = append(results, res)
	}

	// 1. Pure insert (initial load)
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := idx.Insert(int32(k), index.RecordID{Pid: int32(k), Sid: int32(k + 1)}); err != nil {
			log.Fatalf("%s: insert %d: %v", name, k, err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Memory footprint right after load, before workloads.
	stats := GetDetailedMem()
	record(BenchResult{name, "Insert_Load", insertLatency, stats.AllocMB, stats.HeapObjects})

	loaded := n

	// 2. Scenario: OLTP (read heavy)
	start = time.Now()
	loaded = ExecuteWorkload(idx, OLTP, n/2, loaded)
	record(BenchResult{name, "Workload_OLTP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	// 3. Scenario: OLAP (write heavy)
	start = time.Now()
	loaded = ExecuteWorkload(idx, OLAP, n/2, loaded)
	record(BenchResult{name, "Workload_OLAP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	// 4. Basic: range scan
	start = time.Now()
	ExecuteWorkload(idx, Reporting, 100, loaded)
	record(BenchResult{name, "Workload_Range", time.Since(start).Nanoseconds() / 100, GetDetailedMem().AllocMB, 0})

	return results
}
