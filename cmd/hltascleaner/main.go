package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "hltascleaner/internal/config"
	"hltascleaner/internal/diag"
	"hltascleaner/internal/pipeline"
	"hltascleaner/plugins/cleaner/builtin"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitChanged = 2
	exitConfig  = 3
)

var pipelineRun = pipeline.Run

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

type flags struct {
	config          string
	outputDir       string
	outputFile      string
	inPlace         bool
	cleaners        []string
	noMerge         bool
	removeComments  bool
	normalizeAngles bool
	concurrency     int
	check           bool
	logLevel        string
	status          bool
	metricsFile     string
	initDir         string
}

// run 解析参数并执行；返回进程退出码。stderr 承载终端提示与错误。
func run(args []string, stderr io.Writer) int {
	code := exitOK
	var f flags
	cmd := &cobra.Command{
		Use:   "hltascleaner [flags] <inputs...>",
		Short: "Clean up HLTAS frame-bulk scripts",
		Long: "hltascleaner 读取 .hltas 脚本（文件、目录或 \"-\" 表示 STDIN），\n" +
			"按顺序执行清理 pass（合并相邻重复帧块、删除注释、规整角度）并写出结果。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, roots []string) error {
			code = execute(cmd, f, roots, stderr)
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	cmd.SetOut(stderr)

	bindFlags(cmd.Flags(), &f)

	if err := cmd.Execute(); err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	return code
}

// bindFlags 注册全部旗标；值写入 f。
func bindFlags(fl *pflag.FlagSet, f *flags) {
	fl.StringVar(&f.config, "config", "", "配置文件路径（YAML/JSON）；缺省读取 ./config.yaml 或 ./config.json（若存在）")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "输出目录（覆盖 options.writer.output_dir）")
	fl.StringVar(&f.outputFile, "output-file", "", "单个输入的输出文件路径（覆盖 options.writer.output_file）")
	fl.BoolVarP(&f.inPlace, "in-place", "w", false, "就地覆盖源文件")
	fl.StringSliceVar(&f.cleaners, "cleaners", nil, "按顺序执行的清理 pass（逗号分隔）")
	fl.BoolVar(&f.noMerge, "no-merge", false, "关闭 merge_frame_bulks")
	fl.BoolVar(&f.removeComments, "remove-comments", false, "启用 remove_comments（在合并之前执行）")
	fl.BoolVar(&f.normalizeAngles, "normalize-angles", false, "启用 normalize_angles（在合并之前执行）")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "并发处理的文档数")
	fl.BoolVar(&f.check, "check", false, "只检查不写出；存在改动时退出码为 2")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "运行结束写出 Prometheus 文本格式指标")
	fl.StringVar(&f.initDir, "init-config", "", "在指定目录生成 config.yaml 与 .env 模板（已存在则跳过）；--init-config DIR 与 --init-config=DIR 等价，不带值时为当前目录")
	fl.Lookup("init-config").NoOptDefVal = "."
}

func execute(cmd *cobra.Command, f flags, roots []string, stderr io.Writer) int {
	start := time.Now()
	corrID := diag.NewCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}

	if f.initDir != "" {
		dir, err := initTarget(f.initDir, roots)
		if err != nil {
			fprintf(stderr, "参数错误: %v\n", err)
			return exitConfig
		}
		created, err := cfgpkg.WriteTemplates(dir)
		if err != nil {
			fprintf(stderr, "生成默认配置失败: %v\n", err)
			return exitConfig
		}
		for _, p := range created {
			fprintf(stderr, "已生成 %s\n", p)
		}
		return exitOK
	}

	cfg, err := cfgpkg.Load(cfgpkg.Sources{File: configFile(f.config), Overrides: overrides(cmd.Flags(), f, roots)})
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		return exitConfig
	}
	cfg.Cleaners = applyToggles(cfg.Cleaners, f)

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		return exitConfig
	}

	logger := diag.NewLogger(corrID, cfg.Logging.Level)
	defer logger.Close()
	logger.InfoFinish("config", "assembled", start, int64(len(comp.Cleaners)))
	if _, ok := os.LookupEnv(cfgpkg.LegacyNoMergeEnv); ok && !cmd.Flags().Changed("cleaners") {
		logger.Warn("config", "legacy NoBulkDupe disables merge_frame_bulks", nil)
	}
	logger.DebugStart("config", "effective", "", "", map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"concurrency":  fmt.Sprintf("%d", cfg.Concurrency),
		"cleaners":     strings.Join(cfg.Cleaners, ","),
		"check":        fmt.Sprintf("%t", cfg.Check),
		"reader":       cfg.Components.Reader,
		"decoder":      cfg.Components.Decoder,
		"encoder":      cfg.Components.Encoder,
		"writer":       cfgpkg.WriterName(cfg),
	})

	// 终端信息提示（非日志）；STDIN 模式下结果写 STDOUT，提示仍走 stderr
	term := diag.NewTerminal(stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(ctx, comp, set, logger)
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if werr := diag.WriteMetrics(cfg.Metrics.Textfile); werr != nil {
				fprintf(stderr, "提示：指标写出失败：%v\n", werr)
			}
		}()
	}
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		return exitFailure
	}
	t.FinishKV("run", int64(sum.Files), map[string]string{
		"files_changed": fmt.Sprintf("%d", sum.FilesChanged),
		"lines_changed": fmt.Sprintf("%d", sum.LinesChanged),
		"lines_removed": fmt.Sprintf("%d", sum.LinesRemoved),
	})
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	term.RunFinish(true, time.Since(start))
	if set.Check && sum.FilesChanged > 0 {
		return exitChanged
	}
	return exitOK
}

// configFile: --config > HLTAS_CLEANER_CONFIG_FILE > ./config.yaml > ./config.json。
func configFile(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if s := os.Getenv(cfgpkg.EnvConfigFile); s != "" {
		return s
	}
	for _, p := range []string{"config.yaml", "config.json"} {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// overrides 仅收集显式给出的旗标。
func overrides(fl *pflag.FlagSet, f flags, roots []string) map[string]any {
	out := map[string]any{}
	if len(roots) > 0 {
		out["inputs"] = roots
	}
	if fl.Changed("output-dir") {
		out["options.writer.output_dir"] = f.outputDir
	}
	if fl.Changed("output-file") {
		out["options.writer.output_file"] = f.outputFile
	}
	if fl.Changed("in-place") {
		out["options.writer.in_place"] = f.inPlace
	}
	if fl.Changed("cleaners") {
		out["cleaners"] = f.cleaners
	}
	if fl.Changed("concurrency") {
		out["concurrency"] = f.concurrency
	}
	if fl.Changed("check") {
		out["check"] = f.check
	}
	if fl.Changed("log-level") {
		out["logging.level"] = f.logLevel
	}
	if fl.Changed("metrics-file") {
		out["metrics.textfile"] = f.metricsFile
	}
	return out
}

// initTarget: NoOptDefVal 使 "--init-config DIR" 中的 DIR 落入位置参数，此时取其为目录。
func initTarget(dir string, roots []string) (string, error) {
	switch {
	case len(roots) == 0:
		return dir, nil
	case len(roots) == 1 && dir == ".":
		return roots[0], nil
	default:
		return "", fmt.Errorf("--init-config takes a single directory, got extra arguments %v", roots)
	}
}

// applyToggles: 快捷开关。remove_comments 插在最前（注释会阻断相邻合并）；
// normalize_angles 插在 merge_frame_bulks 之前（只在归一后才相等的帧块也能合并），
// 无合并 pass 时追加在最后。
func applyToggles(cleaners []string, f flags) []string {
	out := slices.Clone(cleaners)
	if f.noMerge {
		out = slices.DeleteFunc(out, func(s string) bool { return s == builtin.MergeFrameBulks })
	}
	if f.removeComments && !slices.Contains(out, builtin.RemoveComments) {
		out = append([]string{builtin.RemoveComments}, out...)
	}
	if f.normalizeAngles && !slices.Contains(out, builtin.NormalizeAngles) {
		if i := slices.Index(out, builtin.MergeFrameBulks); i >= 0 {
			out = slices.Insert(out, i, builtin.NormalizeAngles)
		} else {
			out = append(out, builtin.NormalizeAngles)
		}
	}
	return out
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
