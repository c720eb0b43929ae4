package config

import (
	"errors"
	"os"
	"path/filepath"
)

// TemplateYAML: --init-config 生成的默认配置（所有键齐全，值为安全默认）。
const TemplateYAML = `# hltascleaner 配置（由 --init-config 生成）
# 优先级：CLI > ENV(HLTAS_CLEANER_*) > 本文件 > 内置默认

# 输入根：文件或目录；"-" 表示 STDIN（输出写 STDOUT）
inputs: ["-"]
concurrency: 1
# true 时只检查不写出；存在改动以退出码 2 结束
check: false
# 按顺序执行：merge_frame_bulks, remove_comments, normalize_angles
cleaners: [merge_frame_bulks]

logging:
  level: info  # debug|info|warn|error

metrics:
  textfile: ""  # 非空时运行结束写出 Prometheus 文本格式

components:
  reader: fs
  decoder: hltas
  encoder: hltas
  writer: ""  # 空则 STDIN 输入写 stdout，其余写 fs

options:
  reader:
    buf_size: 65536
    exclude_dir_names: [".git", "node_modules"]
    include: ["**/*.hltas"]
  decoder:
    max_bytes: 16777216
  encoder:
    crlf: false
  writer:
    output_dir: out
    output_file: ""  # 非空时单个输入写入该文件
    in_place: false
    atomic: true
    flat: false
`

// TemplateDotEnv: --init-config 生成的 .env 模板。
const TemplateDotEnv = `# hltascleaner .env 模板（由 --init-config 生成）
# 空值表示未设置；嵌套键以 "__" 分隔。

HLTAS_CLEANER_CONFIG_FILE=
HLTAS_CLEANER_INPUTS=
HLTAS_CLEANER_CONCURRENCY=
HLTAS_CLEANER_CHECK=
HLTAS_CLEANER_CLEANERS=
HLTAS_CLEANER_LOGGING__LEVEL=
HLTAS_CLEANER_METRICS__TEXTFILE=
HLTAS_CLEANER_OPTIONS__WRITER__OUTPUT_DIR=
HLTAS_CLEANER_OPTIONS__WRITER__OUTPUT_FILE=
HLTAS_CLEANER_OPTIONS__WRITER__IN_PLACE=

# 旧版开关：设置（任意值）即关闭 merge_frame_bulks
# NoBulkDupe=1
`

// WriteTemplates 在 dir 下生成 config.yaml 与 .env；已存在的文件跳过，不覆盖。
// 返回实际创建的文件路径。
func WriteTemplates(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var created []string
	for _, f := range []struct{ name, body string }{
		{"config.yaml", TemplateYAML},
		{".env", TemplateDotEnv},
	} {
		p := filepath.Join(dir, f.name)
		ok, err := createExclusive(p, f.body)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, p)
		}
	}
	return created, nil
}

func createExclusive(path, body string) (bool, error) {
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := fh.WriteString(body); err != nil {
		_ = fh.Close()
		return false, err
	}
	return true, fh.Close()
}
