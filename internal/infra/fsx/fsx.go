package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// MoveFile 会对它做 copy+delete 兜底；直接调用 Rename 的场景由上层决定。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// MoveFile 把 src 移动到 dst（目标目录必须已存在；不覆盖已有文件）。
//
// - 同盘：rename
// - 跨盘（EXDEV）：降级为 copy + 删除源文件（媒体库与 Takeout 解压目录
//   可能挂在不同文件系统上，移动必须仍然可用）
func MoveFile(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return os.ErrExist
	} else if !os.IsNotExist(err) {
		return err
	}

	err := Rename(src, dst)
	if err == nil {
		return nil
	}
	if !IsCrossDevice(err) {
		return err
	}

	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyFile 把 src 复制到 dst（不覆盖已有文件），并保留源文件的修改时间。
// 修改时间承载着恢复后的拍摄时间，复制丢掉它会破坏后续按日期归档。
func CopyFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: src, Want: "regular file", Got: fi.Mode().Type().String()}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	// best-effort：时间戳复制失败不视为复制失败。
	_ = os.Chtimes(dst, fi.ModTime(), fi.ModTime())
	return nil
}

// AllocUniqueName 在 dir 下为 name 找一个不冲突的文件名：
// name.ext、name_1.ext、name_2.ext……（递增后缀加在扩展名之前）。
//
// 必须逐个 stat 串行判定（检查现状后才分配下一个后缀）；
// 并发分配同一目录下的名字不在本函数契约内。
func AllocUniqueName(dir, name string) (string, error) {
	cand := name
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; ; n++ {
		if n > 0 {
			cand = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		_, err := os.Lstat(filepath.Join(dir, cand))
		if os.IsNotExist(err) {
			return cand, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename，覆盖同名文件）。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 目录 fsync 采用 best-effort（避免平台差异导致误报失败）
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件（前缀带 '.'，避免污染媒体库视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
