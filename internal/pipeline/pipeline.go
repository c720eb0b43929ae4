package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hltascleaner/internal/diag"
	"hltascleaner/pkg/contract"
)

// - 两阶段：Reader 顺序收集全部脚本，随后按文档并发处理。
// - 单点并发：仅此层管理并发；Cleaner 等原子组件均为同步实现。
// - 同一文档的 pass 严格按配置顺序串行执行。
// - 首错取消：任一文档失败即取消其余文档，返回该错误。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader   contract.Reader
	Decoder  contract.Decoder
	Cleaners []contract.Cleaner
	Encoder  contract.Encoder
	// Writer 在 Check 模式下可为 nil。
	Writer contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	// Check: 仅比较，不写出。
	Check bool
	// SkipUnchanged: 未变化的文档不写出（就地覆盖时避免无谓改写）。
	SkipUnchanged bool
}

// Summary: 一次运行的汇总。
type Summary struct {
	Files        int
	FilesChanged int
	LinesChanged int
	LinesRemoved int
}

// Run 执行完整流水线：Reader → Decoder → Cleaner… → Encoder → (比较) → Writer。
// 返回的 Summary 在出错时仅包含已完成的文档。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	if err := sanity(comp, set); err != nil {
		return Summary{}, fmt.Errorf("sanity: %w", err)
	}
	conc := set.Concurrency
	if conc < 1 {
		conc = 1
	}

	srcs, err := collect(ctx, comp.Reader, set.Inputs, logger)
	if err != nil {
		return Summary{}, err
	}

	passes := make([]string, 0, len(comp.Cleaners))
	for _, c := range comp.Cleaners {
		passes = append(passes, c.Name())
	}
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(conc, passes, len(srcs))
	}

	var (
		mu  sync.Mutex
		sum Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	stopped := false
	for _, src := range srcs {
		if gctx.Err() != nil {
			stopped = true
			break
		}
		g.Go(func() error {
			start := time.Now()
			res, err := processOne(gctx, comp, set, logger, src)
			if t := diag.GetTerminal(); t != nil {
				t.FileFinish(diag.FileStatus{
					FileID:       string(src.FileID),
					Changed:      res.changed,
					LinesChanged: res.linesChanged,
					LinesRemoved: res.linesRemoved,
					Err:          err,
				}, time.Since(start))
			}
			if err != nil {
				return err
			}
			mu.Lock()
			sum.Files++
			if res.changed {
				sum.FilesChanged++
			}
			sum.LinesChanged += res.linesChanged
			sum.LinesRemoved += res.linesRemoved
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	// 父 ctx 取消导致提前退出时，goroutine 未必报错
	if stopped {
		return sum, ctx.Err()
	}
	return sum, nil
}

// collect 顺序读取全部输入到内存（Reader 保证稳定顺序）。
func collect(ctx context.Context, r contract.Reader, roots []string, logger *diag.Logger) ([]contract.Source, error) {
	var rtimer *diag.Timer
	if logger != nil {
		rtimer = logger.Start("reader", "iterate")
	}
	var srcs []contract.Source
	err := r.Iterate(ctx, roots, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read %s: %w", fid, err)
		}
		srcs = append(srcs, contract.Source{FileID: fid, Data: b})
		return nil
	})
	if err != nil {
		fail(logger, "reader", "iterate failed", "", "", err)
		return nil, fmt.Errorf("reader iterate: %w", err)
	}
	if rtimer != nil {
		rtimer.Finish("iterate", int64(len(srcs)))
		diag.IncOp("reader", "finish", "success")
		if len(srcs) == 0 {
			logger.Warn("reader", "no input files matched", map[string]string{"roots": strings.Join(roots, ",")})
		}
	}
	return srcs, nil
}

type fileResult struct {
	changed      bool
	linesChanged int
	linesRemoved int
}

// processOne: 单文档的解码、清理、编码、比较与写出。
func processOne(ctx context.Context, comp Components, set Settings, logger *diag.Logger, src contract.Source) (fileResult, error) {
	var res fileResult
	fid := string(src.FileID)

	var dtimer *diag.Timer
	if logger != nil {
		dtimer = logger.StartWith("decoder", "decode", fid, "")
	}
	doc, err := comp.Decoder.Decode(ctx, src.FileID, bytes.NewReader(src.Data))
	if err != nil {
		fail(logger, "decoder", "decode failed", fid, "", err)
		return res, fmt.Errorf("decoder decode: %w", err)
	}
	if dtimer != nil {
		dtimer.Finish("decode", int64(len(doc.Lines)))
		diag.IncOp("decoder", "finish", "success")
	}

	// 基线：未经任何 pass 的重新编码。改动判定与之比较，只有写法差异（如 0.0010）的文件不算改动
	var base bytes.Buffer
	if err := comp.Encoder.Encode(ctx, &base, doc); err != nil {
		fail(logger, "encoder", "encode failed", fid, "", err)
		return res, fmt.Errorf("encoder encode: %w", err)
	}

	for _, c := range comp.Cleaners {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var ctimer *diag.Timer
		if logger != nil {
			ctimer = logger.StartWith("cleaner", "clean", fid, c.Name())
		}
		rep, err := c.Clean(ctx, doc)
		if err != nil {
			fail(logger, "cleaner", "clean failed", fid, c.Name(), err)
			return res, fmt.Errorf("cleaner %s: %w", c.Name(), err)
		}
		res.linesChanged += len(rep.LinesChanged)
		res.linesRemoved += len(rep.LinesRemoved)
		diag.AddLines(c.Name(), len(rep.LinesChanged), len(rep.LinesRemoved))
		if ctimer != nil {
			ctimer.FinishKV("clean", int64(len(rep.LinesChanged)+len(rep.LinesRemoved)), map[string]string{
				"lines_changed": diag.Ints(rep.LinesChanged),
				"lines_removed": diag.Ints(rep.LinesRemoved),
			})
			diag.IncOp("cleaner", "finish", "success")
		}
	}

	var buf bytes.Buffer
	if err := comp.Encoder.Encode(ctx, &buf, doc); err != nil {
		fail(logger, "encoder", "encode failed", fid, "", err)
		return res, fmt.Errorf("encoder encode: %w", err)
	}
	res.changed = !bytes.Equal(buf.Bytes(), base.Bytes())

	if set.Check || (set.SkipUnchanged && !res.changed) {
		if logger != nil {
			logger.DebugStart("writer", "skip", fid, "", map[string]string{"changed": fmt.Sprintf("%t", res.changed)})
		}
		return res, nil
	}
	var wtimer *diag.Timer
	if logger != nil {
		wtimer = logger.StartWith("writer", "write", fid, "")
	}
	if err := comp.Writer.Write(ctx, contract.ArtifactID(src.FileID), &buf); err != nil {
		fail(logger, "writer", "write failed", fid, "", err)
		return res, fmt.Errorf("writer write: %w", err)
	}
	if wtimer != nil {
		wtimer.Finish("write", 1)
		diag.IncOp("writer", "finish", "success")
	}
	return res, nil
}

// fail: 统一记录组件错误（日志 + 计数）。
func fail(logger *diag.Logger, comp, msg, fileID, pass string, err error) {
	code := diag.Classify(err)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
	if logger != nil {
		logger.ErrorWithKV(comp, string(code), msg, nil, fileID, pass, map[string]string{"err": err.Error()})
	}
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Decoder == nil || c.Encoder == nil {
		return errors.New("pipeline: missing components")
	}
	if c.Writer == nil && !s.Check {
		return errors.New("pipeline: missing writer")
	}
	for _, cl := range c.Cleaners {
		if cl == nil {
			return errors.New("pipeline: nil cleaner")
		}
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
