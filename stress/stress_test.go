package stress

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cfgpkg "hltascleaner/internal/config"
	"hltascleaner/internal/pipeline"
)

// baseConfig 构造可运行的最小配置：全部三个 pass，扁平输出。
func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.Defaults()
	cfg.Inputs = []string{input}
	cfg.Cleaners = []string{"remove_comments", "merge_frame_bulks", "normalize_angles"}
	cfg.Logging.Level = "error"
	cfg.Options.Writer = map[string]any{"output_dir": outDir, "atomic": false, "buf_size": 65536}
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) (pipeline.Summary, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

// genScript 生成 n 行帧块：每 7 行一段重复、每 50 行一条注释、角度不时越界。
func genScript(n int) string {
	var sb strings.Builder
	sb.WriteString("version 1\nframes\n")
	for i := 0; i < n; i++ {
		if i%50 == 0 {
			fmt.Fprintf(&sb, "// segment %d\n", i/50)
		}
		fmt.Fprintf(&sb, "s03l------|f-----|------|0.001|%d|-|%d\n", 300+(i/7)*11, 1+i%3)
		if i%200 == 199 {
			fmt.Fprintf(&sb, "target_yaw_override %d %d\n", 360+i, -i)
		}
	}
	return sb.String()
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压力测试")
	}
	const files = 32
	levels := []int{1, 8, 16, 32, 64}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 5
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				root := t.TempDir()
				in := filepath.Join(root, "in")
				if err := os.MkdirAll(in, 0o755); err != nil {
					t.Fatalf("mkdata: %v", err)
				}
				for f := 0; f < files; f++ {
					p := filepath.Join(in, fmt.Sprintf("route-%02d.hltas", f))
					if err := os.WriteFile(p, []byte(genScript(5000+f*100)), 0o644); err != nil {
						t.Fatalf("write input: %v", err)
					}
				}
				cfg := baseConfig(in, filepath.Join(root, "out"))
				cfg.Concurrency = conc

				start := time.Now()
				sum, err := runPipeline(cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if sum.Files != files || sum.FilesChanged != files {
					t.Errorf("run %d: files=%d changed=%d", i, sum.Files, sum.FilesChanged)
					continue
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}
