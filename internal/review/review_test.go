package review

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phototidy/phototidy/internal/organize"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// stagedGroup 构造一个含两张照片的暂存分组，mtime 固定到 2021-06。
func stagedGroup(t *testing.T, base string) string {
	t.Helper()
	group := filepath.Join(base, organize.ReviewRootName, "NEEDS ATTENTION - Duplicates", "deadbeef")
	writeFile(t, filepath.Join(group, "BEST_a.jpg"), "aaa")
	writeFile(t, filepath.Join(group, "b.jpg"), "bbb")
	writeFile(t, filepath.Join(group, "b.jpg.json"), "{}")
	at := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"BEST_a.jpg", "b.jpg"} {
		if err := os.Chtimes(filepath.Join(group, name), at, at); err != nil {
			t.Fatalf("设置 mtime 失败：%v", err)
		}
	}
	return group
}

func TestApply_KeepOne(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	a := &Applier{Logger: discard(), Base: base}

	res, err := a.Apply(ActionKeepOne, group, "BEST_a.jpg")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Success || res.Moved != 1 {
		t.Fatalf("结果不符：%+v", res)
	}

	// BEST_ 前缀必须剥掉，按 mtime 分桶。
	if !exists(filepath.Join(base, organize.LibraryDirName, "2021-06", "a.jpg")) {
		t.Fatalf("保留文件未入库")
	}
	if exists(group) {
		t.Fatalf("分组目录必须整组删除")
	}
}

func TestApply_KeepOneMissingPhoto(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	a := &Applier{Logger: discard(), Base: base}

	_, err := a.Apply(ActionKeepOne, group, "missing.jpg")
	if !IsNotFound(err) {
		t.Fatalf("期望 NotFoundError，实际：%v", err)
	}
	// 近似原子：失败时不应有任何删除。
	if !exists(filepath.Join(group, "b.jpg")) {
		t.Fatalf("失败时分组必须原样保留")
	}
}

func TestApply_KeepAll(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	a := &Applier{Logger: discard(), Base: base}

	res, err := a.Apply(ActionKeepAll, group, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Moved != 2 {
		t.Fatalf("期望入库 2 个文件：%+v", res)
	}

	lib := filepath.Join(base, organize.LibraryDirName, "2021-06")
	if !exists(filepath.Join(lib, "a.jpg")) || !exists(filepath.Join(lib, "b.jpg")) {
		t.Fatalf("所有媒体文件必须入库")
	}
	if !exists(filepath.Join(lib, "b.jpg.json")) {
		t.Fatalf("sidecar 必须随行入库")
	}
	if exists(group) {
		t.Fatalf("分组目录必须删除")
	}
}

func TestApply_DeleteAll(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	a := &Applier{Logger: discard(), Base: base}

	res, err := a.Apply(ActionDeleteAll, group, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Success {
		t.Fatalf("结果不符：%+v", res)
	}
	if exists(group) {
		t.Fatalf("delete_all 必须删掉整个分组")
	}
	if exists(filepath.Join(base, organize.LibraryDirName)) {
		t.Fatalf("delete_all 不应有任何入库")
	}
}

func TestApply_MissingGroup(t *testing.T) {
	base := t.TempDir()
	a := &Applier{Logger: discard(), Base: base}

	_, err := a.Apply(ActionDeleteAll, filepath.Join(base, "gone"), "")
	if !IsNotFound(err) {
		t.Fatalf("期望 NotFoundError，实际：%v", err)
	}
}

func TestApply_UnknownAction(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	a := &Applier{Logger: discard(), Base: base}

	if _, err := a.Apply("shred", group, ""); err == nil {
		t.Fatalf("未知操作必须报错")
	}
	if !exists(group) {
		t.Fatalf("未知操作不应有副作用")
	}
}

func TestApply_KeepOneCollision(t *testing.T) {
	base := t.TempDir()
	group := stagedGroup(t, base)
	writeFile(t, filepath.Join(base, organize.LibraryDirName, "2021-06", "a.jpg"), "existing")
	a := &Applier{Logger: discard(), Base: base}

	if _, err := a.Apply(ActionKeepOne, group, "BEST_a.jpg"); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	lib := filepath.Join(base, organize.LibraryDirName, "2021-06")
	if !exists(filepath.Join(lib, "a_1.jpg")) {
		t.Fatalf("重名必须以递增后缀化解")
	}
	b, err := os.ReadFile(filepath.Join(lib, "a.jpg"))
	if err != nil || string(b) != "existing" {
		t.Fatalf("已有文件绝不覆盖")
	}
}
