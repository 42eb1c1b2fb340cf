package diag

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// 进程内最小计数器：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// 运行结束时由 CLI 以一条 debug 日志输出快照。
var (
	metricsMu sync.Mutex
	counters  = map[string]int64{}
)

// IncOp 累加操作计数（result=success|skip|error）。
func IncOp(comp, stage, result string) {
	inc("op_total{" + comp + "," + stage + "," + result + "}")
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	inc("error_total{" + comp + "," + code + "}")
}

func inc(key string) {
	metricsMu.Lock()
	counters[key]++
	metricsMu.Unlock()
}

// Snapshot 返回当前计数的拷贝。
func Snapshot() map[string]int64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]int64, len(counters))
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// SnapshotString 以稳定顺序输出 "k=v" 列表，便于日志检索。
func SnapshotString() string {
	snap := Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(snap[k], 10))
	}
	return b.String()
}

// Reset 清空计数（测试用）。
func Reset() {
	metricsMu.Lock()
	counters = map[string]int64{}
	metricsMu.Unlock()
}
