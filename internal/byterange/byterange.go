// Package byterange resolves single `bytes=<start>-<end>?` Range headers
// against a known object length and slices cached payloads. Everything here
// is pure arithmetic: no I/O, no clamping. A header that does not resolve to
// 0 <= start <= end < total is reported as ErrUnsatisfiable.
package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const unitPrefix = "bytes="

// ErrUnsatisfiable 表示 Range 头格式错误或越界，对应 416。
var ErrUnsatisfiable = errors.New("range not satisfiable")

// Range 是解析并校验后的闭区间 [Start, End]。
type Range struct {
	Start int64
	End   int64
}

// Parse 按 `bytes=<start>-<end>?` 解析 header。start 必填，end 缺省为 total-1。
// 仅接受十进制数字，后缀区间（bytes=-N）与多区间一律视为不可满足。
func Parse(header string, total int64) (Range, error) {
	if !strings.HasPrefix(header, unitPrefix) {
		return Range{}, fmt.Errorf("%w: unsupported unit in %q", ErrUnsatisfiable, header)
	}
	spec := header[len(unitPrefix):]
	startRaw, endRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: missing '-' in %q", ErrUnsatisfiable, header)
	}

	start, err := parseOffset(startRaw)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start: %v", ErrUnsatisfiable, err)
	}

	end := total - 1
	if endRaw != "" {
		end, err = parseOffset(endRaw)
		if err != nil {
			return Range{}, fmt.Errorf("%w: end: %v", ErrUnsatisfiable, err)
		}
	}

	r := Range{Start: start, End: end}
	if !r.Valid(total) {
		return Range{}, fmt.Errorf("%w: %d-%d outside %d bytes", ErrUnsatisfiable, start, end, total)
	}
	return r, nil
}

// parseOffset 只接受非空的十进制数字串，拒绝符号、空格和溢出。
func parseOffset(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("empty offset")
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, fmt.Errorf("invalid offset %q", raw)
		}
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Valid 判断 0 <= Start <= End < total。
func (r Range) Valid(total int64) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End < total
}

// Len 返回区间字节数 End-Start+1。
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

// ContentRange 生成 206 响应的 `bytes <start>-<end>/<total>`。
func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// Slice 返回 body[Start:End+1] 的独立副本，调用方需保证 r.Valid(len(body))。
func (r Range) Slice(body []byte) []byte {
	out := make([]byte, r.Len())
	copy(out, body[r.Start:r.End+1])
	return out
}

// Unsatisfied 生成 416 响应的 `bytes */<total>`。
func Unsatisfied(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}
