// Command rearrangeplan builds a rearrangement plan from flag-supplied
// shape and stride data, prints its packed fields, and optionally executes
// it against freshly allocated buffers and reports how many bytes it wrote.
// The copied bytes are not checked against a reference.
//
// Usage:
//
//	rearrangeplan -shape 4,3,2 -dst-strides 24,8,4 -src-strides 6,2,1 -unit 1
//	rearrangeplan -shape 4,3,2 -dst-strides 24,8,4 -src-strides 6,2,1 -unit 1 -run
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/InfiniTensor/mem-rearrange/layout"
	"github.com/InfiniTensor/mem-rearrange/rearrange"
	"github.com/InfiniTensor/mem-rearrange/rearrange/contrib/workerpool"
)

var (
	shapeFlag      = flag.String("shape", "", "Comma-separated axis lengths (required)")
	dstStridesFlag = flag.String("dst-strides", "", "Comma-separated destination byte strides (required)")
	srcStridesFlag = flag.String("src-strides", "", "Comma-separated source byte strides (required)")
	dstOffsetFlag  = flag.Int64("dst-offset", 0, "Destination byte offset")
	srcOffsetFlag  = flag.Int64("src-offset", 0, "Source byte offset")
	unitFlag       = flag.Int64("unit", 1, "Bytes per elementary copy")
	distributeFlag = flag.String("distribute", "", "Comma-separated unit candidates to redistribute to, in preference order")
	runFlag        = flag.Bool("run", false, "Allocate buffers and execute the plan")
	workersFlag    = flag.Int("workers", 0, "Worker pool size for -run (default: GOMAXPROCS)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *shapeFlag == "" || *dstStridesFlag == "" || *srcStridesFlag == "" {
		flag.Usage()
		return fmt.Errorf("-shape, -dst-strides and -src-strides are required")
	}

	shape, err := parseInts(*shapeFlag)
	if err != nil {
		return fmt.Errorf("parse -shape: %w", err)
	}
	dstStrides, err := parseInt64s(*dstStridesFlag)
	if err != nil {
		return fmt.Errorf("parse -dst-strides: %w", err)
	}
	srcStrides, err := parseInt64s(*srcStridesFlag)
	if err != nil {
		return fmt.Errorf("parse -src-strides: %w", err)
	}

	dst, err := layout.New(shape, dstStrides, *dstOffsetFlag)
	if err != nil {
		return fmt.Errorf("build dst layout: %w", err)
	}
	src, err := layout.New(shape, srcStrides, *srcOffsetFlag)
	if err != nil {
		return fmt.Errorf("build src layout: %w", err)
	}

	plan, err := rearrange.Build(dst, src, *unitFlag)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	if *distributeFlag != "" {
		candidates, err := parseInt64s(*distributeFlag)
		if err != nil {
			return fmt.Errorf("parse -distribute: %w", err)
		}
		redistributed, ok := plan.DistributeUnit(candidates)
		if !ok {
			return fmt.Errorf("no candidate in %v divides unit %d", candidates, plan.Unit())
		}
		plan = redistributed
	}

	printPlan(plan)

	if *runFlag {
		return runPlan(plan)
	}
	return nil
}

func printPlan(p *rearrange.Plan) {
	fmt.Printf("ndim:        %d\n", p.NDim())
	fmt.Printf("unit:        %d\n", p.Unit())
	fmt.Printf("count:       %d\n", p.Count())
	fmt.Printf("dst offset:  %d\n", p.DstOffset())
	fmt.Printf("src offset:  %d\n", p.SrcOffset())
	fmt.Printf("shape:       %v\n", p.Shape())
	fmt.Printf("idx strides: %v\n", p.IdxStrides())
	fmt.Printf("dst strides: %v\n", p.DstStrides())
	fmt.Printf("src strides: %v\n", p.SrcStrides())
}

// runPlan allocates buffers just large enough for the plan's footprint,
// fills the source with a recognizable pattern, executes the plan, and
// reports success.
func runPlan(p *rearrange.Plan) error {
	dstBytes := footprintSize(p.DstOffset(), p.Unit(), p.IdxStrides(), p.DstStrides(), p.Count())
	srcBytes := footprintSize(p.SrcOffset(), p.Unit(), p.IdxStrides(), p.SrcStrides(), p.Count())

	dst := make([]byte, dstBytes)
	src := make([]byte, srcBytes)
	for i := range src {
		src[i] = byte(i)
	}

	pool := workerpool.New(*workersFlag)
	defer pool.Close()

	if err := rearrange.LaunchSlices(p, pool, dst, src); err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	fmt.Printf("launched: wrote %d bytes to a %d-byte destination buffer using %d workers\n", p.Count()*p.Unit(), len(dst), pool.NumWorkers())
	return nil
}

// footprintSize returns the number of bytes needed to hold the largest byte
// the plan can reach on one side of the copy (an upper bound suitable for a
// demo buffer allocation; it does not account for negative offsets).
func footprintSize(offset, unit int64, idx, strides []int64, count int64) int {
	hi := offset + unit
	if count > 1 {
		outer := count
		for i := range idx {
			length := outer / idx[i]
			outer = idx[i]
			if step := strides[i]; step > 0 {
				hi += step * (length - 1)
			}
		}
	}
	if hi < 0 {
		hi = 0
	}
	return int(hi)
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInt64s(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
