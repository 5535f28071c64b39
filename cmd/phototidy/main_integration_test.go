package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phototidy/phototidy/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON
	//（进度/配置必须走 stderr 或直接禁用）。
	base := t.TempDir()

	// 准备最小输入：一个零字节媒体文件（必然被标记 too_small）。
	in := filepath.Join(base, "GoogleTakeout", "empty.jpg")
	if err := os.MkdirAll(filepath.Dir(in), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(in, nil, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/phototidy", "run", base,
		"--exiftool", filepath.Join(base, "no-such-exiftool"))
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Stats.TotalProcessed != 1 || rr.Stats.TooSmallFound != 1 {
		t.Fatalf("统计不符：%+v", rr.Stats)
	}
	// 进度/配置不应出现在 stdout。
	if strings.Contains(stdout.String(), "配置（生效）") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：processed=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	// report.json 必须落盘。
	if _, err := os.Stat(filepath.Join(base, "logs", "report.json")); err != nil {
		t.Fatalf("report.json 必须落盘：%v", err)
	}
}
