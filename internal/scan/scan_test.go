package scan

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
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

func TestScan_CollectsMediaAcrossRoots(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "Photos & Videos", "2020-01", "a.jpg"), "aaa")
	writeFile(t, filepath.Join(base, "GoogleTakeout", "Takeout", "b.MP4"), "bbbb")
	writeFile(t, filepath.Join(base, "GoogleTakeout", "Takeout", "notes.txt"), "x")
	writeFile(t, filepath.Join(base, "elsewhere", "c.png"), "ccc")

	records, err := Scan(discard(), base, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(records))
	}

	got := []string{records[0].Path, records[1].Path}
	want := []string{
		filepath.Join(base, "GoogleTakeout", "Takeout", "b.MP4"),
		filepath.Join(base, "Photos & Videos", "2020-01", "a.jpg"),
	}
	sort.Strings(want)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 条路径不符：got=%s want=%s", i, got[i], want[i])
		}
	}
	if records[1].SizeBytes != 3 {
		t.Fatalf("SizeBytes 必须来自 stat：%d", records[1].SizeBytes)
	}
}

func TestScan_SidecarLink(t *testing.T) {
	base := t.TempDir()
	p := filepath.Join(base, "Photos & Videos", "a.jpg")
	writeFile(t, p, "aaa")
	writeFile(t, p+".json", `{}`)
	writeFile(t, filepath.Join(base, "Photos & Videos", "b.jpg"), "bbb")

	records, err := Scan(discard(), base, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(records))
	}
	if !records[0].HasSidecar || records[0].SidecarPath != p+".json" {
		t.Fatalf("a.jpg 必须关联 sidecar：%+v", records[0])
	}
	if records[1].HasSidecar {
		t.Fatalf("b.jpg 不应有 sidecar")
	}
}

func TestScan_ExcludesArchivesDir(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "GoogleTakeout", "Takeout", "a.jpg"), "aaa")
	writeFile(t, filepath.Join(base, "GoogleTakeout", "archives", "old.jpg"), "bbb")

	records, err := Scan(discard(), base, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(records) != 1 {
		t.Fatalf("archives/ 下的文件不应收录：%d 条", len(records))
	}
}

func TestScan_ExcludeDirsRelativeToBase(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "Photos & Videos", "keep", "a.jpg"), "aaa")
	writeFile(t, filepath.Join(base, "Photos & Videos", "skip", "b.jpg"), "bbb")

	records, err := Scan(discard(), base, []string{filepath.Join("Photos & Videos", "skip")})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(records) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d", len(records))
	}
	if filepath.Base(records[0].Path) != "a.jpg" {
		t.Fatalf("排除规则命中了错误的文件：%s", records[0].Path)
	}
}

func TestScan_SortedOutput(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "Photos & Videos", "z.jpg"), "z")
	writeFile(t, filepath.Join(base, "Photos & Videos", "a.jpg"), "a")
	writeFile(t, filepath.Join(base, "Photos & Videos", "m.jpg"), "m")

	records, err := Scan(discard(), base, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !sort.SliceIsSorted(records, func(i, j int) bool { return records[i].Path < records[j].Path }) {
		t.Fatalf("输出必须按路径排序")
	}
}

func TestScan_MissingRootsIsEmpty(t *testing.T) {
	base := t.TempDir()

	records, err := Scan(discard(), base, nil)
	if err != nil {
		t.Fatalf("根目录缺失不是错误：%v", err)
	}
	if len(records) != 0 {
		t.Fatalf("期望空结果，实际 %d 条", len(records))
	}
}
