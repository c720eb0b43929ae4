package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知键在解析期失败。
type Config struct {
	// Inputs: 输入根（文件/目录）；"-" 表示 STDIN，不可与其他根混用。
	Inputs      []string `koanf:"inputs"      validate:"dive,required"`
	Concurrency int      `koanf:"concurrency" validate:"min=1,max=1024"`
	// Check: 仅检查，不写回；存在改动时以退出码 2 结束。
	Check bool `koanf:"check"`
	// Cleaners: 按顺序执行的清理 pass 名称（注册表名）。
	Cleaners []string `koanf:"cleaners" validate:"unique,dive,required"`
	Logging  Logging  `koanf:"logging"`
	Metrics  Metrics  `koanf:"metrics"`

	// 组件名选择（空则使用默认名）。
	Components Components `koanf:"components"`

	// 各组件 Options 子树，序列化为 JSON 后传入工厂。
	Options Options `koanf:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Metrics: 运行结束时写出 Prometheus 文本格式（空则不写）。
type Metrics struct {
	Textfile string `koanf:"textfile"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `koanf:"reader"`
	Decoder string `koanf:"decoder"`
	Encoder string `koanf:"encoder"`
	// Writer 为空时按输入推断：STDIN 输入写 stdout，否则写 fs。
	Writer string `koanf:"writer"`
}

// Options: 各组件的原样 Options。
type Options struct {
	Reader  map[string]any `koanf:"reader"`
	Decoder map[string]any `koanf:"decoder"`
	Encoder map[string]any `koanf:"encoder"`
	Writer  map[string]any `koanf:"writer"`
}
