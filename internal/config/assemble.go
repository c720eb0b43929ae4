package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"hltascleaner/internal/pipeline"
	"hltascleaner/pkg/contract"
	"hltascleaner/pkg/registry"
)

var validate = validator.New()

// Validate 对最小必要边界做静态校验（结构标签 + 注册表名称）。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// "-" 不能与其他根混用
	if stdinInput(cfg.Inputs) && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Decoder, d.Components.Decoder); registry.Decoder[name] == nil {
		return fmt.Errorf("config: decoder %q not registered", name)
	}
	if name := effName(cfg.Components.Encoder, d.Components.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("config: encoder %q not registered", name)
	}
	if name := WriterName(cfg); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	for _, name := range cfg.Cleaners {
		if registry.Cleaner[name] == nil {
			return fmt.Errorf("config: cleaner %q not registered (known: %s)", name, strings.Join(registry.Names(registry.Cleaner), ", "))
		}
	}
	return nil
}

// WriterName 返回生效的 writer 名称：显式配置优先，否则 STDIN 输入写 stdout
// （给出 output_file 时除外），其余写 fs。
func WriterName(cfg Config) string {
	if cfg.Components.Writer != "" {
		return cfg.Components.Writer
	}
	if stdinInput(cfg.Inputs) && outputFile(cfg.Options.Writer) == "" {
		return "stdout"
	}
	return "fs"
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只序列化为 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	dn := effName(cfg.Components.Decoder, d.Components.Decoder)
	en := effName(cfg.Components.Encoder, d.Components.Encoder)

	ropts, err := rawJSON("reader", cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	dopts, err := rawJSON("decoder", cfg.Options.Decoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	eopts, err := rawJSON("encoder", cfg.Options.Encoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	wopts, err := rawJSON("writer", cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	var comp pipeline.Components
	if comp.Reader, err = registry.Reader[rn](ropts); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %s: %w", rn, err)
	}
	if comp.Decoder, err = registry.Decoder[dn](dopts); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("decoder %s: %w", dn, err)
	}
	for _, name := range cfg.Cleaners {
		c, err := registry.Cleaner[name](nil)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("cleaner %s: %w", name, err)
		}
		comp.Cleaners = append(comp.Cleaners, c)
	}
	if comp.Encoder, err = registry.Encoder[en](eopts); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("encoder %s: %w", en, err)
	}

	// Check 模式不写出，不构造 writer（也不要求 output_dir）
	if !cfg.Check {
		wn := WriterName(cfg)
		// 推断出的 stdout 忽略为 fs 准备的 options
		if cfg.Components.Writer == "" && wn == "stdout" {
			wopts = nil
		}
		if comp.Writer, err = registry.Writer[wn](wopts); err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %s: %w", wn, err)
		}
	}

	set := pipeline.Settings{
		Inputs:        append([]string(nil), cfg.Inputs...),
		Concurrency:   cfg.Concurrency,
		Check:         cfg.Check,
		SkipUnchanged: inPlace(cfg.Options.Writer),
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

func stdinInput(inputs []string) bool {
	for _, s := range inputs {
		if s == string(contract.Stdio) {
			return true
		}
	}
	return false
}

func outputFile(opts map[string]any) string {
	v, _ := opts["output_file"].(string)
	return strings.TrimSpace(v)
}

func inPlace(opts map[string]any) bool {
	v, _ := opts["in_place"].(bool)
	return v
}

// rawJSON: 空 map 视为未提供（工厂使用默认选项）。
func rawJSON(role string, m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("config: options.%s: %w", role, err)
	}
	return b, nil
}
