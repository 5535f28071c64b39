package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 phototidy.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
	// ErrCodeBadBasePath 表示 base path 不存在或不是目录（构造期致命错误）。
	ErrCodeBadBasePath = "config_bad_base_path"
)

const (
	// DefaultWorkers 是并行阶段 worker 数的内置默认值。
	DefaultWorkers = 4
	// MaxWorkers 是 worker 数上限；配置超出时截断。
	MaxWorkers = 32
)

// CLIArgs 只包含 CLI 暴露的入口项，并保留“是否显式指定”的信息
// （显式的 --workers=0 必须报错，而不是落回默认值）。
type CLIArgs struct {
	Path string

	Workers    int
	WorkersSet bool

	ExifTool    string
	ExifToolSet bool
}

// FileConfig 对应 phototidy.json 的解析结构。
type FileConfig struct {
	Path         string   `json:"path"`
	Workers      int      `json:"workers"`
	ExifTool     string   `json:"exiftool"`
	ExcludeDirs  []string `json:"exclude_dirs"`
	ExifFallback *bool    `json:"exif_fallback"`
}

// EffectiveConfig 是合并并校验后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Workers  int
	ExifTool string

	ExcludeDirs []string

	// ExifFallback 控制无 sidecar 时是否回读文件内嵌 EXIF 的拍摄时间。
	ExifFallback bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeBadBasePath:
		if e.Err != nil {
			return fmt.Sprintf("%s：base path %q 不可用：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：base path %q 不是目录", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置无效（%q）：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置无效（%q）", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/phototidy.json（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/phototidy.json（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - workers：CLI > config > 默认 4
// - exiftool：CLI > config > 自动探测（留空给实现层探测）
// - exclude_dirs / exif_fallback：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		// base path 先校验：path 指向文件时读 <path>/phototidy.json 会报
		// ENOTDIR，必须先拦成 bad_base_path 而不是当配置文件错误。
		if err := statBase(absPath); err != nil {
			return EffectiveConfig{}, err
		}
		cfgPath = filepath.Join(absPath, "phototidy.json")

		fc, _, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		// 配置文件不存在也不报错：CLI path 单独可用。
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath = filepath.Join(cwdAbs, "phototidy.json")
	var exists bool
	fc, exists, err = readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	absPath := absCleanFrom(cwdAbs, fc.Path)
	return merge(absPath, cli, fc, cfgPath)
}

// statBase 校验 base path 存在且是目录。
// 这是构造期致命错误，任何阶段开始前就拦下。
func statBase(absPath string) error {
	fi, err := os.Stat(absPath)
	if err != nil {
		return &Error{Code: ErrCodeBadBasePath, Path: absPath, Err: err}
	}
	if !fi.IsDir() {
		return &Error{Code: ErrCodeBadBasePath, Path: absPath}
	}
	return nil
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	if err := statBase(absPath); err != nil {
		return EffectiveConfig{}, err
	}

	// workers：CLI > config > 默认；显式给出的非法值必须报错而不是悄悄修正。
	workers := DefaultWorkers
	if cli.WorkersSet {
		if cli.Workers < 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("workers 必须是正整数，实际是 %d", cli.Workers)}
		}
		workers = cli.Workers
	} else if fc.Workers != 0 {
		if fc.Workers < 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("workers 必须是正整数，实际是 %d", fc.Workers)}
		}
		workers = fc.Workers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	exifTool := strings.TrimSpace(fc.ExifTool)
	if cli.ExifToolSet {
		exifTool = strings.TrimSpace(cli.ExifTool)
	}

	exifFallback := true
	if fc.ExifFallback != nil {
		exifFallback = *fc.ExifFallback
	}

	return EffectiveConfig{
		Path:         absPath,
		Workers:      workers,
		ExifTool:     exifTool,
		ExcludeDirs:  append([]string(nil), fc.ExcludeDirs...),
		ExifFallback: exifFallback,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
