package diag

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultLogDir: 默认日志目录（相对工作目录）。
const DefaultLogDir = "logs"

// Logger 为最小结构化日志器：单行 JSON，经 RotatingFile 写入 logs/，10 MiB 轮转。
// 每条事件带 corr_id，便于串联同一次运行。
type Logger struct {
	corrID string
	cl     *charmlog.Logger
	sink   io.Closer
}

// NewCorrID 生成一次运行的关联 ID。
func NewCorrID() string { return uuid.NewString() }

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/hltascleaner-current.txt。
func NewLogger(corrID, level string) *Logger {
	sink := NewRotatingFile(DefaultLogDir, 10*1024*1024)
	l := NewLoggerTo(sink, corrID, level)
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入任意 io.Writer；w 为 nil 时写 stderr。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	cl := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		TimeFunction:    charmlog.NowUTC,
		Level:           parseLevel(level),
		Formatter:       charmlog.JSONFormatter,
	})
	return &Logger{corrID: corrID, cl: cl}
}

func parseLevel(s string) charmlog.Level {
	lv, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return charmlog.InfoLevel
	}
	return lv
}

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string { return l.corrID }

// Close 关闭底层文件（若有）。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Pass   string
	Msg    string
	KV     map[string]string
}

func (ev Event) keyvals(corrID string) []any {
	kv := []any{"corr_id", corrID, "comp", ev.Comp, "stage", ev.Stage}
	if ev.Code != "" {
		kv = append(kv, "code", ev.Code)
	}
	if ev.DurMS != 0 {
		kv = append(kv, "dur_ms", ev.DurMS)
	}
	if ev.Count != 0 {
		kv = append(kv, "count", ev.Count)
	}
	if ev.FileID != "" {
		kv = append(kv, "file_id", ev.FileID)
	}
	if ev.Pass != "" {
		kv = append(kv, "pass", ev.Pass)
	}
	if len(ev.KV) > 0 {
		keys := make([]string, 0, len(ev.KV))
		for k := range ev.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kv = append(kv, k, ev.KV[k])
		}
	}
	return kv
}

func (l *Logger) log(lv charmlog.Level, ev Event) {
	if l == nil || l.cl == nil {
		return
	}
	l.cl.Log(lv, ev.Msg, ev.keyvals(l.corrID)...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(charmlog.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/pass 的 start。
func (l *Logger) StartWith(comp, msg, fileID, pass string) *Timer {
	l.log(charmlog.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Pass: pass, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, pass: pass, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWithKV 支持附带键值对（例如出错行号、字段名）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, pass string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(charmlog.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, Pass: pass, KV: kv})
}

// Warn 记录 warn 事件（如配置中的过时开关）。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(charmlog.WarnLevel, Event{Comp: comp, Stage: "warn", Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(charmlog.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, pass string, kv map[string]string) {
	l.log(charmlog.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Pass: pass, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	pass   string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV 记录带键值的 finish。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(charmlog.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, Pass: t.pass, Msg: msg, KV: kv})
}

// Ints 将索引列表渲染为紧凑字符串，供日志 KV 使用。
func Ints(xs []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", x)
	}
	b.WriteByte(']')
	return b.String()
}
