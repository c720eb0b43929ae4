package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认建议 stderr）。
// - TTY: 进度单行 \r 覆盖，状态标签着色；非 TTY: 关键节点分行打印。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool
	styles  tagStyles

	// 运行期最小状态
	concurrency int
	filesDone   int
	filesTotal  int
	changed     int
	failed      int
	runStart    time.Time

	// 输出控制
	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

type tagStyles struct {
	ok, changed, fail, run lipgloss.Style
}

// FileStatus: 单个文件的处理结果摘要。
type FileStatus struct {
	FileID       string
	Changed      bool
	LinesChanged int
	LinesRemoved int
	Err          error
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// IsTerminal 报告 w 是否为交互终端（CI 环境视为否）。
func IsTerminal(w io.Writer) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, isTTY: IsTerminal(w)}
	r := lipgloss.NewRenderer(w)
	t.styles = tagStyles{
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		changed: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		run:     r.NewStyle().Foreground(lipgloss.Color("6")),
	}
	return t
}

// RunStart: 记录运行上下文（并发、清理 pass、文件总数）。
func (t *Terminal) RunStart(concurrency int, passes []string, files int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.filesTotal = files
	t.filesDone, t.changed, t.failed = 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("%s 并发=%d | 文件=%d | pass=%s", t.tag(t.styles.run, "run"), concurrency, files, safe(strings.Join(passes, ","))))
}

// FileFinish: 单个文件完成（立即换行输出；FilesDone++）。
func (t *Terminal) FileFinish(st FileStatus, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.filesDone++
	name := shortenBase(st.FileID, 48)
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	switch {
	case st.Err != nil:
		t.failed++
		t.println(fmt.Sprintf("%s %s | %s | 用时 %s", t.tag(t.styles.fail, "fail"), name, safe(st.Err.Error()), formatDur(dur)))
	case st.Changed:
		t.changed++
		t.println(fmt.Sprintf("%s %s | 改写 %d 行 | 删除 %d 行 | 用时 %s", t.tag(t.styles.changed, "changed"), name, st.LinesChanged, st.LinesRemoved, formatDur(dur)))
	default:
		if !t.isTTY {
			t.println(fmt.Sprintf("%s %s | 无变化 | 用时 %s", t.tag(t.styles.ok, "clean"), name, formatDur(dur)))
		}
	}
	t.progress()
}

// progress: TTY 下的总体进度（≥100ms 节流）。调用方持锁。
func (t *Terminal) progress() {
	if !t.isTTY || t.filesDone >= t.filesTotal {
		return
	}
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	t.printInline(fmt.Sprintf("%s 进度 %d/%d | 改动 %d | 失败 %d | 并发 %d | 用时 %s",
		t.tag(t.styles.run, "run"), t.filesDone, t.filesTotal, t.changed, t.failed, t.concurrency, formatSince(t.runStart)))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	tag := t.tag(t.styles.ok, "ok")
	if !ok {
		tag = t.tag(t.styles.fail, "fail")
	}
	t.println(fmt.Sprintf("%s 全部完成 | 文件 %d | 改动 %d | 失败 %d | 总用时 %s", tag, t.filesDone, t.changed, t.failed, formatDur(dur)))
}

func (t *Terminal) tag(s lipgloss.Style, name string) string {
	label := "[" + name + "]"
	if !t.isTTY {
		return label
	}
	return s.Render(label)
}

// 内部输出工具
func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	// 清尾：若新行比旧短，填充空格覆盖
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if base == "" {
		return ""
	}
	if visLen(base) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	rs := []rune(base)
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return lipgloss.Width(s) }

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
