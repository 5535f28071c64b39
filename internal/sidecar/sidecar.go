// Package sidecar 解析 Takeout 导出的 per-file JSON 元数据。
package sidecar

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// timeEntry 对应 sidecar 里的时间对象。timestamp 是 Unix 秒，
// 导出数据里通常是字符串编码，但也见过裸数字，两种都接受。
type timeEntry struct {
	Timestamp json.Number `json:"timestamp"`
}

type meta struct {
	PhotoTakenTime *timeEntry `json:"photoTakenTime"`
	CreationTime   *timeEntry `json:"creationTime"`
}

// CaptureTime 从 sidecar 文件解析拍摄时间。
//
// - 优先 photoTakenTime，缺失时回退 creationTime
// - 两者都没有（或值为空）：返回 ok=false，不算错误
// - 文件不可读 / JSON 非法：返回 err（调用方按单文件失败记日志）
func CaptureTime(path string) (t time.Time, ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false, err
	}
	return parse(b)
}

func parse(b []byte) (time.Time, bool, error) {
	var m meta
	if err := json.Unmarshal(b, &m); err != nil {
		return time.Time{}, false, err
	}

	for _, e := range []*timeEntry{m.PhotoTakenTime, m.CreationTime} {
		if e == nil {
			continue
		}
		s := strings.TrimSpace(e.Timestamp.String())
		if s == "" {
			continue
		}
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// timestamp 字段存在但不是数字：当作单文件数据坏掉。
			return time.Time{}, false, err
		}
		return time.Unix(sec, 0), true, nil
	}
	return time.Time{}, false, nil
}
