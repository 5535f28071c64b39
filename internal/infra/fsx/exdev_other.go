//go:build !unix

package fsx

// 非 unix 平台没有统一的 EXDEV errno 判定；rename 失败直接按原错误处理。
func isEXDEV(err error) bool { return false }
