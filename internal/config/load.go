package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"hltascleaner/plugins/cleaner/builtin"
)

const (
	// EnvPrefix: 环境变量前缀；嵌套层级以 "__" 分隔，例如
	// HLTAS_CLEANER_OPTIONS__WRITER__OUTPUT_DIR=out。
	EnvPrefix = "HLTAS_CLEANER_"
	// EnvConfigFile: 配置文件路径（不参与键映射）。
	EnvConfigFile = EnvPrefix + "CONFIG_FILE"
	// LegacyNoMergeEnv: 旧版开关；存在即关闭 merge_frame_bulks。
	LegacyNoMergeEnv = "NoBulkDupe"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// Options 子树使用空 map（非 nil），便于后续来源逐键合并。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Cleaners:    []string{builtin.MergeFrameBulks},
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:  "fs",
			Decoder: "hltas",
			Encoder: "hltas",
		},
		Options: Options{
			Reader:  map[string]any{},
			Decoder: map[string]any{},
			Encoder: map[string]any{},
			Writer:  map[string]any{},
		},
	}
}

// Sources: 一次加载使用的来源；优先级 默认 < File < Environ < Overrides。
type Sources struct {
	// File: YAML 或 JSON 配置文件；空则跳过。
	File string
	// Environ: KEY=VALUE 列表；nil 时读取进程环境。
	Environ []string
	// Overrides: CLI 覆盖，键为点分路径（如 "logging.level"）。
	Overrides map[string]any
}

// Load 按优先级合并全部来源并严格解码（未知键报错）。
// 不做业务校验；校验见 Validate。
func Load(src Sources) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if src.File != "" {
		m, err := readFile(src.File)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawMap(m), nil); err != nil {
			return Config{}, fmt.Errorf("config: apply %s: %w", src.File, err)
		}
	}

	environ := src.Environ
	if environ == nil {
		environ = os.Environ()
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   func() []string { return environ },
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	for key, val := range src.Overrides {
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("config: set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(mapstructure.StringToSliceHookFunc(",")),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Inputs = trimAll(cfg.Inputs)
	cfg.Cleaners = trimAll(cfg.Cleaners)

	// CLI 显式给出 cleaners 时旧版开关不生效
	if _, explicit := src.Overrides["cleaners"]; !explicit && hasEnv(environ, LegacyNoMergeEnv) {
		cfg.Cleaners = without(cfg.Cleaners, builtin.MergeFrameBulks)
	}
	return cfg, nil
}

// LoadDotEnv 读取 .env 注入进程环境（不覆盖已有变量）；文件不存在时忽略。
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m map[string]any
	// YAML 为 JSON 超集，两种格式共用解析
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return dropNil(m), nil
}

// dropNil 递归移除空值，避免 "key:" 覆盖默认。
func dropNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = dropNil(t)
		default:
			out[k] = v
		}
	}
	return out
}

// envKey: HLTAS_CLEANER_LOGGING__LEVEL -> logging.level。
// options 子树的值按 YAML 标量推断类型（数字、布尔、列表）。
func envKey(key, value string) (string, any) {
	name := strings.TrimPrefix(key, EnvPrefix)
	if name == strings.TrimPrefix(EnvConfigFile, EnvPrefix) || name == "" || strings.TrimSpace(value) == "" {
		return "", nil
	}
	path := strings.ToLower(strings.ReplaceAll(name, "__", "."))
	if strings.HasPrefix(path, "options.") {
		return path, scalar(value)
	}
	return path, value
}

func scalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

func hasEnv(environ []string, name string) bool {
	for _, kv := range environ {
		if kv == name || strings.HasPrefix(kv, name+"=") {
			return true
		}
	}
	return false
}

func without(in []string, drop string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// rawMap 将已解析的 map 适配为 koanf.Provider。
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) { return r, nil }

func (r rawMap) ReadBytes() ([]byte, error) { return nil, errors.New("ReadBytes not implemented") }
