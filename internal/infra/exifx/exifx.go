// Package exifx 封装对外部元数据工具的调用：
// exiftool 子进程（写拍摄时间、探测像素尺寸）与 goexif（只读回退）。
//
// 约束：所有子进程调用单独限时，超时按“该文件失败”处理，绝不拖垮整个 run。
package exifx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	writeTimeout = 10 * time.Second
	probeTimeout = 5 * time.Second
)

// Tool 是一个已定位的 exiftool 可执行文件。
type Tool struct {
	Path string
}

// commonPaths 是 exiftool 的常见安装位置（按顺序探测）。
var commonPaths = []string{
	"/usr/bin/exiftool",
	"/usr/local/bin/exiftool",
	"/opt/homebrew/bin/exiftool",
}

// Find 定位 exiftool。explicit 非空时只认显式路径；
// 否则依次尝试常见位置与 PATH。找不到返回 ok=false（不是错误：
// 没有 exiftool 时流水线退化为纯 Go 能力）。
func Find(explicit string) (Tool, bool) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return Tool{Path: explicit}, true
		}
		if p, err := exec.LookPath(explicit); err == nil {
			return Tool{Path: p}, true
		}
		return Tool{}, false
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return Tool{Path: p}, true
		}
	}
	if p, err := exec.LookPath("exiftool"); err == nil {
		return Tool{Path: p}, true
	}
	return Tool{}, false
}

// WriteCaptureTime 把拍摄时间写入文件内嵌元数据（DateTimeOriginal）。
// 调用方应把失败当作 best-effort 写穿失败：记日志、不中断。
func (t Tool) WriteCaptureTime(ctx context.Context, path string, ts time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	arg := "-DateTimeOriginal=" + ts.Format("2006:01:02 15:04:05")
	cmd := exec.CommandContext(ctx, t.Path, arg, "-overwrite_original", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("exiftool 写入超时：%w", ctx.Err())
		}
		return fmt.Errorf("exiftool 写入失败：%v（%s）", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ProbeDimensions 用 exiftool 读取像素尺寸。
// 输出两行数字（-s3：只输出值）；解析不出视为探测失败。
func (t Tool) ProbeDimensions(ctx context.Context, path string) (width, height int, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.Path, "-ImageWidth", "-ImageHeight", "-s3", path)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, fmt.Errorf("exiftool 探测超时：%w", ctx.Err())
		}
		return 0, 0, fmt.Errorf("exiftool 探测失败：%w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return 0, 0, errors.New("exiftool 未返回尺寸")
	}
	w, errW := strconv.Atoi(strings.TrimSpace(lines[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(lines[1]))
	if errW != nil || errH != nil {
		return 0, 0, fmt.Errorf("exiftool 尺寸输出无法解析：%q", strings.TrimSpace(string(out)))
	}
	return w, h, nil
}

// ReadCaptureTime 从文件内嵌 EXIF 读取 DateTimeOriginal（goexif，纯 Go）。
// 没有 EXIF 或没有该 tag 都属于正常情况，由调用方静默回退。
func ReadCaptureTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, err
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation("2006:01:02 15:04:05", strings.TrimSpace(s), time.Local)
}
