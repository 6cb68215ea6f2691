//go:build !latchkv_debug

package record

const debugEnabled = false

func invariant(bool, string) {}
