package takeout

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("创建 zip 条目失败：%v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("写入 zip 条目失败：%v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭 zip 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 zip 失败：%v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestExtract(t *testing.T) {
	base := t.TempDir()
	writeZip(t, filepath.Join(base, DropDirName, "takeout-001.zip"), map[string]string{
		"Takeout/Photos/a.jpg":      "aaa",
		"Takeout/Photos/a.jpg.json": "{}",
	})

	n, err := Extract(context.Background(), discard(), base)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 1 {
		t.Fatalf("期望解压 1 个压缩包：%d", n)
	}

	extracted := filepath.Join(base, DropDirName, "takeout-001", "Takeout", "Photos", "a.jpg")
	if !exists(extracted) {
		t.Fatalf("解压内容缺失：%s", extracted)
	}
	b, err := os.ReadFile(extracted)
	if err != nil || string(b) != "aaa" {
		t.Fatalf("解压内容不正确")
	}
	if !exists(filepath.Join(base, DropDirName, ArchivesDirName, "takeout-001.zip")) {
		t.Fatalf("处理完的压缩包必须归档")
	}
	if exists(filepath.Join(base, DropDirName, "takeout-001.zip")) {
		t.Fatalf("归档是移动而不是复制")
	}
}

func TestExtract_BadZipSkipped(t *testing.T) {
	base := t.TempDir()
	drop := filepath.Join(base, DropDirName)
	if err := os.MkdirAll(drop, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(drop, "bad.zip"), []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	writeZip(t, filepath.Join(drop, "good.zip"), map[string]string{"a.jpg": "aaa"})

	n, err := Extract(context.Background(), discard(), base)
	if err != nil {
		t.Fatalf("单包失败不应中断：%v", err)
	}
	if n != 1 {
		t.Fatalf("期望解压 1 个压缩包：%d", n)
	}
	// 坏包留在原地，不归档。
	if !exists(filepath.Join(drop, "bad.zip")) {
		t.Fatalf("失败的压缩包必须留在投放区")
	}
}

func TestExtract_ZipSlipRejected(t *testing.T) {
	base := t.TempDir()
	drop := filepath.Join(base, DropDirName)
	writeZip(t, filepath.Join(drop, "evil.zip"), map[string]string{"../escape.jpg": "x"})

	n, err := Extract(context.Background(), discard(), base)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 0 {
		t.Fatalf("越界压缩包不应计入成功：%d", n)
	}
	if exists(filepath.Join(base, "escape.jpg")) || exists(filepath.Join(drop, "escape.jpg")) {
		t.Fatalf("越界条目绝不能落盘")
	}
}

func TestExtract_NoDropDir(t *testing.T) {
	n, err := Extract(context.Background(), discard(), t.TempDir())
	if err != nil {
		t.Fatalf("投放区不存在不是错误：%v", err)
	}
	if n != 0 {
		t.Fatalf("期望 0：%d", n)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := t.TempDir()
	writeZip(t, filepath.Join(base, DropDirName, "a.zip"), map[string]string{"a.jpg": "x"})

	if _, err := Extract(ctx, discard(), base); err == nil {
		t.Fatalf("取消必须返回错误")
	}
	if exists(filepath.Join(base, DropDirName, "a")) {
		t.Fatalf("取消后不应解压")
	}
}
