package restore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phototidy/phototidy/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	calls []string
	err   error
}

func (w *fakeWriter) WriteCaptureTime(_ context.Context, path string, _ time.Time) error {
	w.calls = append(w.calls, path)
	return w.err
}

func mediaWithSidecar(t *testing.T, ts string) *domain.PhotoRecord {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(p, []byte("aaa"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	sc := p + ".json"
	if err := os.WriteFile(sc, []byte(ts), 0o644); err != nil {
		t.Fatalf("写入 sidecar 失败：%v", err)
	}
	return &domain.PhotoRecord{Path: p, SizeBytes: 3, HasSidecar: true, SidecarPath: sc}
}

func TestRun_RestoresFromSidecar(t *testing.T) {
	rec := mediaWithSidecar(t, `{"photoTakenTime":{"timestamp":"1600000000"}}`)
	w := &fakeWriter{}
	r := &Restorer{Logger: discard(), Writer: w}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	want := time.Unix(1600000000, 0)
	if !rec.CapturedAt.Equal(want) {
		t.Fatalf("CapturedAt 不正确：%v", rec.CapturedAt)
	}
	info, err := os.Stat(rec.Path)
	if err != nil {
		t.Fatalf("stat 失败：%v", err)
	}
	if !info.ModTime().Equal(want) {
		t.Fatalf("mtime 必须改到拍摄时间：%v", info.ModTime())
	}
	if len(w.calls) != 1 || w.calls[0] != rec.Path {
		t.Fatalf("必须调用写穿：%v", w.calls)
	}
}

func TestRun_WriterFailureIsBestEffort(t *testing.T) {
	rec := mediaWithSidecar(t, `{"photoTakenTime":{"timestamp":"1600000000"}}`)
	w := &fakeWriter{err: errors.New("boom")}
	r := &Restorer{Logger: discard(), Writer: w}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("写穿失败不应中断：%v", err)
	}
	if rec.CapturedAt.IsZero() {
		t.Fatalf("写穿失败不影响 CapturedAt")
	}
}

func TestRun_NilWriterSkipsWriteThrough(t *testing.T) {
	rec := mediaWithSidecar(t, `{"photoTakenTime":{"timestamp":"1600000000"}}`)
	r := &Restorer{Logger: discard()}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.CapturedAt.IsZero() {
		t.Fatalf("没有 exiftool 也必须恢复 CapturedAt")
	}
}

func TestRun_MalformedSidecarLeavesRecordUntouched(t *testing.T) {
	rec := mediaWithSidecar(t, `{broken`)
	r := &Restorer{Logger: discard()}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("单文件失败不应中断：%v", err)
	}
	if !rec.CapturedAt.IsZero() {
		t.Fatalf("坏 sidecar 不应设置 CapturedAt")
	}
}

func TestRun_ExifFallback(t *testing.T) {
	orig := readEmbeddedTime
	defer func() { readEmbeddedTime = orig }()
	want := time.Date(2021, 3, 4, 5, 6, 7, 0, time.Local)
	readEmbeddedTime = func(string) (time.Time, error) { return want, nil }

	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(p, []byte("aaa"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	rec := &domain.PhotoRecord{Path: p, SizeBytes: 3}
	r := &Restorer{Logger: discard(), ExifFallback: true}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !rec.CapturedAt.Equal(want) {
		t.Fatalf("EXIF 回退未生效：%v", rec.CapturedAt)
	}
}

func TestRun_ExifFallbackSkipsVideos(t *testing.T) {
	orig := readEmbeddedTime
	defer func() { readEmbeddedTime = orig }()
	called := false
	readEmbeddedTime = func(string) (time.Time, error) {
		called = true
		return time.Now(), nil
	}

	rec := &domain.PhotoRecord{Path: filepath.Join(t.TempDir(), "a.mp4")}
	r := &Restorer{Logger: discard(), ExifFallback: true}

	if err := r.Run(context.Background(), []*domain.PhotoRecord{rec}, nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if called {
		t.Fatalf("视频不应走 EXIF 回退")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := mediaWithSidecar(t, `{"photoTakenTime":{"timestamp":"1600000000"}}`)
	r := &Restorer{Logger: discard()}

	if err := r.Run(ctx, []*domain.PhotoRecord{rec}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际：%v", err)
	}
	if !rec.CapturedAt.IsZero() {
		t.Fatalf("取消后不应再处理文件")
	}
}

func TestRun_OnFileCallback(t *testing.T) {
	recs := []*domain.PhotoRecord{
		{Path: filepath.Join(t.TempDir(), "a.jpg")},
		{Path: filepath.Join(t.TempDir(), "b.jpg")},
	}
	r := &Restorer{Logger: discard()}

	n := 0
	if err := r.Run(context.Background(), recs, func() { n++ }); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 2 {
		t.Fatalf("onFile 调用次数不符：%d", n)
	}
}
