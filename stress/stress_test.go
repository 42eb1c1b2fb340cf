package stress

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "scoutfmt/internal/config"
	"scoutfmt/internal/pipeline"
)

var labels = []string{"Team", "Match", "Auto", "Teleop", "Endgame", "Notes"}

// populate 生成 n 个原始记录文件；每 corruptEvery 个插入一个损坏文件。
func populate(t *testing.T, dir string, n, corruptEvery int) (names []string, corrupt int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("team%04d-%d.json", i, i%7)
		body := fmt.Sprintf(`["%d",%d,%d.5,%d,true,"note, \"%d\""]`, 1000+i, i%90, i, i*2, i)
		if corruptEvery > 0 && i%corruptEvery == corruptEvery-1 {
			body = body[:len(body)-1]
			corrupt++
		} else {
			names = append(names, name)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	sort.Strings(names)
	return names, corrupt
}

func baseConfig(dir, out string, inPlace bool) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.WorkingDirectory = dir
	cfg.TargetJSON = filepath.Join(out, "all.json")
	cfg.TargetCSV = filepath.Join(out, "all.csv")
	cfg.LabelOrder = labels
	cfg.InPlace = &inPlace
	cfg.Logging.Level = "error"
	return cfg
}

func runPipeline(cfg cfgpkg.Config) (pipeline.Summary, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

// TestStress 大量文件下验证顺序、计数与两份输出的一致性，并记录耗时。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in -short mode")
	}
	for _, n := range []int{10, 500, 3000} {
		for _, inPlace := range []bool{true, false} {
			t.Run(fmt.Sprintf("n=%d/in_place=%v", n, inPlace), func(t *testing.T) {
				dir, out := t.TempDir(), t.TempDir()
				names, corrupt := populate(t, dir, n, 97)

				start := time.Now()
				sum, err := runPipeline(baseConfig(dir, out, inPlace))
				require.NoError(t, err)
				t.Logf("files=%d corrupt=%d elapsed=%s", n, corrupt, time.Since(start))

				assert.Equal(t, n, sum.Scanned)
				assert.Equal(t, corrupt, sum.Corrupt)
				assert.Equal(t, len(names), sum.Compiled)

				raw, err := os.ReadFile(filepath.Join(out, "all.json"))
				require.NoError(t, err)
				var coll []map[string]any
				require.NoError(t, json.Unmarshal(raw, &coll))
				require.Len(t, coll, len(names))

				f, err := os.Open(filepath.Join(out, "all.csv"))
				require.NoError(t, err)
				defer f.Close()
				rows, err := csv.NewReader(f).ReadAll()
				require.NoError(t, err)
				require.Len(t, rows, len(names)+1)
				assert.Equal(t, labels, rows[0])

				// 第 i 行与第 i 个对象一致，且按文件名顺序排列
				for i, obj := range coll {
					var idx int
					_, err := fmt.Sscanf(names[i], "team%04d-", &idx)
					require.NoError(t, err)
					assert.Equal(t, strconv.Itoa(1000+idx), obj["Team"], names[i])
					assert.Equal(t, obj["Team"], rows[i+1][0])
					assert.Equal(t, fmt.Sprintf(`note, "%d"`, idx), rows[i+1][5])
				}
			})
		}
	}
}
