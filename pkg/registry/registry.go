package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"hltascleaner/pkg/contract"
	"hltascleaner/plugins/cleaner/builtin"
	codec "hltascleaner/plugins/codec/hltas"
	rfs "hltascleaner/plugins/reader/filesystem"
	wfs "hltascleaner/plugins/writer/filesystem"
	wstd "hltascleaner/plugins/writer/stdout"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewDecoder 工厂签名：接收原样 JSON Options。
type NewDecoder func(raw json.RawMessage) (contract.Decoder, error)

// NewCleaner 工厂签名：接收原样 JSON Options。
type NewCleaner func(raw json.RawMessage) (contract.Cleaner, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Decoder 工厂注册表。
var Decoder = map[string]NewDecoder{
	"hltas": func(raw json.RawMessage) (contract.Decoder, error) {
		var opts codec.DecoderOptions
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return codec.NewDecoder(&opts), nil
	},
}

// Cleaner 工厂注册表。内置 pass 无选项，但仍拒绝未知字段。
var Cleaner = map[string]NewCleaner{
	builtin.MergeFrameBulks: noOptions(builtin.NewMerge),
	builtin.RemoveComments:  noOptions(builtin.NewRemoveComments),
	builtin.NormalizeAngles: noOptions(builtin.NewNormalizeAngles),
}

func noOptions(mk func() contract.Cleaner) NewCleaner {
	return func(raw json.RawMessage) (contract.Cleaner, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mk(), nil
	}
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	"hltas": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts codec.EncoderOptions
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return codec.NewEncoder(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（输出目录或就地覆盖；原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// stdout: 标准输出
	"stdout": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wstd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wstd.New(&opts), nil
	},
}

// Names 返回注册表中的名称（字典序），用于帮助信息与校验提示。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
