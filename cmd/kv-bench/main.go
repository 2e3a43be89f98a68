package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/resp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address")
	conns := flag.Int("conns", 10, "concurrent connections")
	ops := flag.Int("ops", 10000, "total operations")
	ratioGet := flag.Float64("ratio_get", 0.8, "get ratio")
	valueSize := flag.Int("value_size", 128, "value size bytes")
	ttlMs := flag.Int("px", 0, "PX milliseconds on SET (0 for none)")
	pipeline := flag.Int("pipeline", 1, "commands in flight per connection")
	flag.Parse()

	if *conns <= 0 || *pipeline <= 0 {
		fmt.Fprintln(os.Stderr, "conns and pipeline must be > 0")
		os.Exit(1)
	}

	value := strings.Repeat("x", *valueSize)
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key:%d", i)
	}

	var issued atomic.Int64
	var failed atomic.Int64
	latCh := make(chan time.Duration, *ops)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", *addr)
			if err != nil {
				failed.Add(1)
				return
			}
			defer conn.Close()
			rd := resp.NewReader(conn)
			wr := resp.NewWriter(conn)
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			for {
				batch := 0
				for batch < *pipeline && int(issued.Add(1)) <= *ops {
					key := keys[rng.Intn(len(keys))]
					if err := send(wr, key, value, rng.Float64() < *ratioGet, *ttlMs); err != nil {
						failed.Add(1)
						return
					}
					batch++
				}
				if batch == 0 {
					return
				}
				startBatch := time.Now()
				for j := 0; j < batch; j++ {
					v, _, err := rd.ReadValue()
					if err != nil {
						failed.Add(1)
						return
					}
					if v.Type() == resp.Error {
						failed.Add(1)
					}
				}
				perOp := time.Since(startBatch) / time.Duration(batch)
				for j := 0; j < batch; j++ {
					latCh <- perOp
				}
			}
		}(i)
	}

	wg.Wait()
	close(latCh)

	elapsed := time.Since(start)
	var lats []time.Duration
	for d := range latCh {
		lats = append(lats, d)
	}
	fmt.Printf("Total ops: %d\n", len(lats))
	fmt.Printf("Failures: %d\n", failed.Load())
	fmt.Printf("Elapsed: %s\n", elapsed)
	fmt.Printf("Ops/sec: %.2f\n", float64(len(lats))/elapsed.Seconds())
	printLatencyStats(lats)
}

func send(wr *resp.Writer, key, value string, get bool, ttlMs int) error {
	if get {
		return wr.WriteMultiBulk("GET", key)
	}
	if ttlMs > 0 {
		return wr.WriteMultiBulk("SET", key, value, "PX", strconv.Itoa(ttlMs))
	}
	return wr.WriteMultiBulk("SET", key, value)
}

func printLatencyStats(lats []time.Duration) {
	if len(lats) == 0 {
		fmt.Println("No latency samples")
		return
	}
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	fmt.Printf("p50: %s\n", lats[len(lats)*50/100])
	fmt.Printf("p95: %s\n", lats[len(lats)*95/100])
	fmt.Printf("p99: %s\n", lats[len(lats)*99/100])
}
