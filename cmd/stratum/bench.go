package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratum-ui/stratum/internal/scene"
	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

type benchProfile struct {
	Name       string
	Iterations int
	Rows       int
}

var benchProfiles = map[string]benchProfile{
	"fast":     {Name: "fast", Iterations: 1_000, Rows: 20},
	"standard": {Name: "standard", Iterations: 10_000, Rows: 50},
	"stress":   {Name: "stress", Iterations: 50_000, Rows: 200},
}

type benchReport struct {
	Profile     string            `json:"profile"`
	Scene       string            `json:"scene"`
	Reparenting bool              `json:"reparenting"`
	Iterations  int               `json:"iterations"`
	Pairs       int               `json:"pairs"`
	Elapsed     string            `json:"elapsed"`
	DiffsPerSec float64           `json:"diffs_per_sec"`
	P50         string            `json:"p50"`
	P95         string            `json:"p95"`
	P99         string            `json:"p99"`
	Max         string            `json:"max"`
	Mutations   map[string]uint64 `json:"mutations"`
}

func benchCmd() *cobra.Command {
	var (
		profileName string
		scenePath   string
		iterations  int
		rows        int
		reparenting bool
		jsonOutput  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the differ over scripted workloads",
		Long: `Bench replays a scene's generation pairs through the differ and
reports latency percentiles and mutation counts.

Without --scene, a synthetic list workload sized by the profile is used:
a wrapper-flattened list of rows going through prop updates, moves,
inserts, and removals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := benchProfiles[strings.ToLower(profileName)]
			if !ok {
				return fmt.Errorf("unknown profile %q (use fast, standard, stress)", profileName)
			}
			if iterations > 0 {
				base.Iterations = iterations
			}
			if rows > 0 {
				base.Rows = rows
			}

			var (
				sc  *scene.Scene
				err error
			)
			if scenePath != "" {
				sc, err = scene.Load(scenePath)
				if err != nil {
					return err
				}
			} else {
				sc = listScene(base.Rows)
			}

			pairs, err := generationPairs(sc)
			if err != nil {
				return err
			}

			report, err := runBench(base, sc.Name, pairs, reparenting)
			if err != nil {
				return err
			}

			writeBenchSummary(report)
			if jsonOutput != "" {
				if err := writeBenchJSON(jsonOutput, report); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "standard", "Profile: fast|standard|stress")
	cmd.Flags().StringVar(&scenePath, "scene", "", "Scene file to bench (default: synthetic list)")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Diff iterations (overrides profile)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Synthetic list size (overrides profile)")
	cmd.Flags().BoolVar(&reparenting, "reparenting", true, "Enable move detection")
	cmd.Flags().StringVar(&jsonOutput, "json", "", "JSON report path ('-' for stdout)")

	return cmd
}

// generationPair is one (old, new) root pair produced by a scene step.
type generationPair struct {
	old, new *shadow.Node
}

// generationPairs applies every scene step once and collects the root
// pairs, so the timed loop measures only the differ.
func generationPairs(sc *scene.Scene) ([]generationPair, error) {
	tree, err := sc.Build()
	if err != nil {
		return nil, err
	}

	old, _ := tree.Root()
	pairs := make([]generationPair, 0, len(sc.Steps))
	for i := range sc.Steps {
		if _, err := sc.Steps[i].Apply(tree); err != nil {
			return nil, err
		}
		next, _ := tree.Root()
		pairs = append(pairs, generationPair{old: old, new: next})
		old = next
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("scene %q has no steps to bench", sc.Name)
	}
	return pairs, nil
}

func runBench(profile benchProfile, sceneName string, pairs []generationPair, reparenting bool) (*benchReport, error) {
	// Warm up allocator and caches before timing.
	for _, p := range pairs {
		if _, err := mount.CalculateMutations(p.old, p.new, reparenting); err != nil {
			return nil, err
		}
	}

	samples := make([]time.Duration, 0, profile.Iterations)
	mutationCounts := make(map[string]uint64)

	start := time.Now()
	for i := 0; i < profile.Iterations; i++ {
		p := pairs[i%len(pairs)]

		diffStart := time.Now()
		mutations, err := mount.CalculateMutations(p.old, p.new, reparenting)
		samples = append(samples, time.Since(diffStart))
		if err != nil {
			return nil, err
		}
		for _, m := range mutations {
			mutationCounts[m.Type.String()]++
		}
	}
	elapsed := time.Since(start)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return &benchReport{
		Profile:     profile.Name,
		Scene:       sceneName,
		Reparenting: reparenting,
		Iterations:  profile.Iterations,
		Pairs:       len(pairs),
		Elapsed:     elapsed.String(),
		DiffsPerSec: float64(profile.Iterations) / elapsed.Seconds(),
		P50:         percentile(samples, 50).String(),
		P95:         percentile(samples, 95).String(),
		P99:         percentile(samples, 99).String(),
		Max:         samples[len(samples)-1].String(),
		Mutations:   mutationCounts,
	}, nil
}

// percentile returns the p-th percentile of sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}

func writeBenchSummary(r *benchReport) {
	success("bench %s: %d diffs over %d pairs in %s (%.0f diffs/s)",
		r.Profile, r.Iterations, r.Pairs, r.Elapsed, r.DiffsPerSec)
	info("latency  p50 %s  p95 %s  p99 %s  max %s", r.P50, r.P95, r.P99, r.Max)

	keys := make([]string, 0, len(r.Mutations))
	for k := range r.Mutations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, r.Mutations[k]))
	}
	info("mutations %s", strings.Join(parts, "  "))
}

func writeBenchJSON(path string, r *benchReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// listScene generates the synthetic list workload: rows under a
// transparent wrapper, then prop churn, a promote-to-front move, one
// removal, and one insertion.
func listScene(rows int) *scene.Scene {
	const (
		rootTag    = shadow.Tag(1)
		wrapperTag = shadow.Tag(2)
		firstRow   = shadow.Tag(100)
	)

	rowSpecs := make([]*scene.NodeSpec, rows)
	for i := range rowSpecs {
		rowSpecs[i] = &scene.NodeSpec{
			Tag:       firstRow + shadow.Tag(i),
			Component: "Row",
			Traits:    []string{"view", "stacking"},
			Props:     map[string]any{"label": fmt.Sprintf("row-%d", i), "unread": 0},
			Frame:     []float64{0, float64(i * 64), 390, 64},
		}
	}

	sc := &scene.Scene{
		Name: fmt.Sprintf("list-%d", rows),
		Root: &scene.NodeSpec{
			Tag:       rootTag,
			Component: "Root",
			Traits:    []string{"view", "stacking"},
			Frame:     []float64{0, 0, 390, 844},
			Children: []*scene.NodeSpec{{
				Tag:       wrapperTag,
				Component: "ListWrapper",
				Frame:     []float64{0, 0, 390, 844},
				Children:  rowSpecs,
			}},
		},
	}

	// Touch a spread of rows, then reshape the list.
	for i := 0; i < rows; i += 7 {
		sc.Steps = append(sc.Steps, scene.Step{
			Name: fmt.Sprintf("touch row %d", i),
			SetProps: &scene.SetPropsStep{
				Tag:   firstRow + shadow.Tag(i),
				Props: map[string]any{"label": fmt.Sprintf("row-%d", i), "unread": 1},
			},
		})
	}
	last := firstRow + shadow.Tag(rows-1)
	sc.Steps = append(sc.Steps,
		scene.Step{
			Name: "promote last row",
			Move: &scene.MoveStep{Tag: last, Parent: wrapperTag, Index: 0},
		},
		scene.Step{
			Name:   "drop first row",
			Remove: &scene.RemoveStep{Tag: firstRow},
		},
		scene.Step{
			Name: "append fresh row",
			Insert: &scene.InsertStep{
				Parent: wrapperTag,
				Index:  -1,
				Node: &scene.NodeSpec{
					Tag:       firstRow + shadow.Tag(rows),
					Component: "Row",
					Traits:    []string{"view", "stacking"},
					Props:     map[string]any{"label": "fresh", "unread": 0},
					Frame:     []float64{0, float64(rows * 64), 390, 64},
				},
			},
		},
	)
	return sc
}
