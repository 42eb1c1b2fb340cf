package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"scoutfmt/pkg/contract"
)

// BenchmarkWrite 不同输入尺寸下的写回性能（原子模式）。
func BenchmarkWrite(b *testing.B) {
	for _, sz := range []int{256, 64 * 1024} {
		b.Run(fmt.Sprintf("size=%d", sz), func(b *testing.B) {
			data := bytes.Repeat([]byte("a"), sz)
			w := New(nil)
			id := contract.NormalizeFileID(filepath.Join(b.TempDir(), "A-1.json"))
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := w.Write(ctx, id, bytes.NewReader(data)); err != nil {
					b.Fatalf("写入失败: %v", err)
				}
			}
		})
	}
}
