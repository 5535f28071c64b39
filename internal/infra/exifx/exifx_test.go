package exifx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFind_ExplicitMissing(t *testing.T) {
	// 显式路径不存在：必须返回 ok=false，而不是回退到 PATH 探测。
	if _, ok := Find(filepath.Join(t.TempDir(), "no-such-exiftool")); ok {
		t.Fatalf("不存在的显式路径不应命中")
	}
}

func TestReadCaptureTime_NoExif(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(p, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	if _, err := ReadCaptureTime(p); err == nil {
		t.Fatalf("无 EXIF 的文件必须报错（由调用方静默回退）")
	}
}

func TestReadCaptureTime_MissingFile(t *testing.T) {
	if _, err := ReadCaptureTime(filepath.Join(t.TempDir(), "gone.jpg")); err == nil {
		t.Fatalf("不存在的文件必须报错")
	}
}
