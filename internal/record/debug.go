//go:build latchkv_debug

package record

const debugEnabled = true

func invariant(cond bool, msg string) {
	if !cond {
		panic("record: " + msg)
	}
}
