// Package review 对暂存区的一个分组应用人工决定。
// 这是全系统唯一做破坏性删除的组件，之前的阶段只复制或移动。
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phototidy/phototidy/internal/domain"
	"github.com/phototidy/phototidy/internal/infra/fsx"
	"github.com/phototidy/phototidy/internal/organize"
)

// 三种人工决定。
const (
	ActionKeepOne   = "keep_one"
	ActionKeepAll   = "keep_all"
	ActionDeleteAll = "delete_all"
)

// bestMarkerPrefix 标记分组内建议保留的成员，入库时从文件名上剥掉。
const bestMarkerPrefix = "BEST_"

// NotFoundError 表示分组目录或指定文件已不存在
//（可能已被应用过，或被用户在外部删除）。
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("不存在：%q", e.Path)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// Result 是一次决定的执行结果。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Moved 是实际入库的文件数（keep_all 为 best-effort，可能小于组大小）。
	Moved int `json:"moved"`
}

// Applier 执行人工决定。Base 是档案根目录（媒体库在其下）。
type Applier struct {
	Logger *slog.Logger
	Base   string
}

// Apply 对 groupPath 应用 action。photoName 仅 keep_one 需要。
//
// - keep_one：把指定文件（剥掉 BEST_ 前缀）按其 mtime 分桶入库，
//   然后整组删除；文件级近似原子（移动成功前不删除任何东西）
// - keep_all：把组内所有已知扩展名的媒体文件入库（sidecar 随行），
//   best-effort：单文件失败记日志继续，最后整组删除并报告实际数量
// - delete_all：无条件整组删除
func (a *Applier) Apply(action, groupPath, photoName string) (Result, error) {
	info, err := os.Stat(groupPath)
	if err != nil || !info.IsDir() {
		return Result{}, &NotFoundError{Path: groupPath}
	}

	switch action {
	case ActionKeepOne:
		return a.keepOne(groupPath, photoName)
	case ActionKeepAll:
		return a.keepAll(groupPath)
	case ActionDeleteAll:
		if err := os.RemoveAll(groupPath); err != nil {
			return Result{}, err
		}
		return Result{Success: true, Message: "分组已整组删除"}, nil
	default:
		return Result{}, fmt.Errorf("未知操作：%q", action)
	}
}

func (a *Applier) keepOne(groupPath, photoName string) (Result, error) {
	src := filepath.Join(groupPath, photoName)
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return Result{}, &NotFoundError{Path: src}
	}

	name := strings.TrimPrefix(photoName, bestMarkerPrefix)
	destDir := filepath.Join(a.Base, organize.LibraryDirName, organize.Bucket(info.ModTime()))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, err
	}
	name, err = fsx.AllocUniqueName(destDir, name)
	if err != nil {
		return Result{}, err
	}
	if err := fsx.MoveFile(src, filepath.Join(destDir, name)); err != nil {
		return Result{}, err
	}

	if err := os.RemoveAll(groupPath); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%s 已入库，其余成员已删除", name),
		Moved:   1,
	}, nil
}

func (a *Applier) keepAll(groupPath string) (Result, error) {
	entries, err := os.ReadDir(groupPath)
	if err != nil {
		return Result{}, err
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !domain.IsMediaExt(ext) {
			continue
		}
		if a.keepAllOne(groupPath, e.Name()) {
			moved++
		}
	}

	if err := os.RemoveAll(groupPath); err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d 个文件已入库，分组已删除", moved),
		Moved:   moved,
	}, nil
}

func (a *Applier) keepAllOne(groupPath, fileName string) bool {
	src := filepath.Join(groupPath, fileName)
	info, err := os.Stat(src)
	if err != nil {
		a.Logger.Warn("文件不可读，跳过", "path", src, "err", err)
		return false
	}

	name := strings.TrimPrefix(fileName, bestMarkerPrefix)
	destDir := filepath.Join(a.Base, organize.LibraryDirName, organize.Bucket(info.ModTime()))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		a.Logger.Warn("创建媒体库目录失败", "dir", destDir, "err", err)
		return false
	}
	name, err = fsx.AllocUniqueName(destDir, name)
	if err != nil {
		a.Logger.Warn("分配入库文件名失败", "path", src, "err", err)
		return false
	}
	if err := fsx.MoveFile(src, filepath.Join(destDir, name)); err != nil {
		a.Logger.Warn("移动入库失败", "path", src, "err", err)
		return false
	}

	if sc := src + ".json"; fileExists(sc) {
		if err := fsx.MoveFile(sc, filepath.Join(destDir, name+".json")); err != nil {
			a.Logger.Warn("移动 sidecar 失败", "path", sc, "err", err)
		}
	}
	return true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
