package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	cfgpkg "scoutfmt/internal/config"
	"scoutfmt/internal/diag"
	"scoutfmt/internal/pipeline"
	"scoutfmt/pkg/contract"
)

var pipelineRun = pipeline.Run

// 默认配置文件名（按顺序探测当前目录）。
var defaultConfigNames = []string{"scoutfmt.yaml", "scoutfmt.yml", "scoutfmt.json"}

// runFlags: run 与根命令共享的旗标。
type runFlags struct {
	config   string
	dir      string
	json     string
	csv      string
	labels   string
	logLevel string
	logDir   string
	inPlace  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 解析命令行并返回进程退出码：0 成功，3 配置错误，1 其它失败。
func run(args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前加载 .env（不覆盖已有 ENV）。
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fprintf(stderr, "warning: .env ignored: %v\n", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errReported) {
		fprintf(stderr, "Error: %v\n", err)
	}
	return diag.ExitCode(err)
}

// errReported 标记已由日志器报告过的运行期错误，避免重复输出。
var errReported = errors.New("reported")

type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() []error {
	return []error{e.err, errReported}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var rf runFlags
	root := &cobra.Command{
		Use:   "scoutfmt [working_dir target_json target_csv labels | config_file]",
		Short: "Label positional scouting records and compile them to JSON and CSV",
		Long: `scoutfmt turns every "<name>-<n>.json" file in a working directory from a
positional JSON array into a labeled JSON object, then compiles all of them into
one JSON array file and one CSV table.

With no sub-command scoutfmt behaves like "scoutfmt run".`,
		Args:          positionalArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args, rf, stderr)
		},
	}
	addRunFlags(root, &rf)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", contract.ErrConfig, err)
	})

	var runRF runFlags
	runCmd := &cobra.Command{
		Use:   "run [working_dir target_json target_csv labels | config_file]",
		Short: "Label, compile and project the working directory",
		Example: `  scoutfmt run ./scouting all.json all.csv Team,Match,Score
  scoutfmt run scoutfmt.yaml
  scoutfmt run --dir ./scouting --json all.json --csv all.csv --labels Team,Match,Score`,
		Args: positionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args, runRF, stderr)
		},
	}
	addRunFlags(runCmd, &runRF)

	var format string
	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a template config and .env into dir (never overwrites)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return initTemplates(cmd.OutOrStdout(), dir, format)
		},
	}
	initCmd.Flags().StringVar(&format, "format", "yaml", "template format: yaml|json")

	root.AddCommand(runCmd, initCmd)
	return root
}

func addRunFlags(cmd *cobra.Command, rf *runFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&rf.config, "config", "c", "", "config file (.yaml/.yml/.json); default ./scoutfmt.{yaml,yml,json} if present")
	fs.StringVarP(&rf.dir, "dir", "d", "", "working directory holding the record files")
	fs.StringVar(&rf.json, "json", "", "compiled JSON output path")
	fs.StringVar(&rf.csv, "csv", "", "compiled CSV output path")
	fs.StringVarP(&rf.labels, "labels", "l", "", "comma separated label order")
	fs.StringVar(&rf.logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&rf.logDir, "log-dir", "", "directory for the rotating log file")
	fs.BoolVar(&rf.inPlace, "in-place", true, "overwrite source files with their labeled form")
}

// positionalArgs: 无参数、单个配置文件，或 4 个位置参数。
func positionalArgs(_ *cobra.Command, args []string) error {
	switch len(args) {
	case 0, 1, 4:
		return nil
	default:
		return fmt.Errorf("%w: expected 0, 1 or 4 arguments, got %d", contract.ErrConfig, len(args))
	}
}

// resolveConfig 按 默认 → 文件 → ENV → CLI 的顺序合并配置。
func resolveConfig(cmd *cobra.Command, args []string, rf runFlags, environ []string) (cfgpkg.Config, error) {
	cfgFile := rf.config
	if len(args) == 1 {
		cfgFile = args[0]
	}
	if cfgFile == "" {
		cfgFile = lookupEnv(environ, cfgpkg.EnvPrefix+"CONFIG_FILE")
	}
	cfgJSON := lookupEnv(environ, cfgpkg.EnvPrefix+"CONFIG_JSON")
	if cfgFile == "" && cfgJSON == "" {
		for _, name := range defaultConfigNames {
			if st, err := os.Stat(name); err == nil && !st.IsDir() {
				cfgFile = name
				break
			}
		}
	}

	cfg := cfgpkg.Defaults()
	switch {
	case cfgFile != "":
		base, err := cfgpkg.LoadFile(cfgFile)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	case cfgJSON != "":
		base, err := cfgpkg.LoadJSON("", []byte(cfgJSON))
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	if len(args) == 4 {
		overCLI.WorkingDirectory = args[0]
		overCLI.TargetJSON = args[1]
		overCLI.TargetCSV = args[2]
		overCLI.LabelOrder = cfgpkg.SplitLabels(args[3])
	}
	if rf.dir != "" {
		overCLI.WorkingDirectory = rf.dir
	}
	if rf.json != "" {
		overCLI.TargetJSON = rf.json
	}
	if rf.csv != "" {
		overCLI.TargetCSV = rf.csv
	}
	if rf.labels != "" {
		overCLI.LabelOrder = cfgpkg.SplitLabels(rf.labels)
	}
	overCLI.Logging = cfgpkg.Logging{Level: rf.logLevel, Dir: rf.logDir}
	if cmd.Flags().Changed("in-place") {
		v := rf.inPlace
		overCLI.InPlace = &v
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

func runPipeline(cmd *cobra.Command, args []string, rf runFlags, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()

	cfg, err := resolveConfig(cmd, args, rf, os.Environ())
	if err != nil {
		return err
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		dumpConfig(stderr, cfg)
		return err
	}
	level, _ := cfgpkg.ParseLevel(cfg.Logging.Level)
	logger := diag.NewLogger(diag.Options{
		CorrID:  corrID,
		Level:   level,
		Dir:     cfg.Logging.Dir,
		Console: zapcore.AddSync(stderr),
	})
	defer logger.Sync()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return err
	}
	logger.DebugKV("config", "effective", map[string]string{
		"working_directory": set.WorkingDirectory,
		"target_json":       string(set.TargetJSON),
		"target_csv":        string(set.TargetCSV),
		"label_order":       strings.Join(set.LabelOrder, ","),
		"in_place":          strconv.FormatBool(set.InPlace),
		"reader":            cfg.Components.Reader,
		"writer":            cfg.Components.Writer,
		"labeler":           cfg.Components.Labeler,
		"compiler":          cfg.Components.Compiler,
		"projector":         cfg.Components.Projector,
	})

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(cmd.Context(), comp, set, logger)
	if err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), err.Error(), &start)
		diag.IncOp("pipeline", "finish", "error")
		diag.IncError("pipeline", string(code))
		logger.DebugKV("metrics", "snapshot", map[string]string{"counters": diag.SnapshotString()})
		return reportedError{err: err}
	}
	t.Finish("run", int64(sum.Rows))
	logger.DebugKV("metrics", "snapshot", map[string]string{"counters": diag.SnapshotString()})
	logger.Info("pipeline", fmt.Sprintf("done: %d labeled, %d already formatted, %d corrupt, %d compiled",
		sum.Labeled, sum.AlreadyFormatted, sum.Corrupt, sum.Compiled), "")
	return nil
}

// initTemplates 生成配置模板与 .env 模板；已存在的文件跳过，不覆盖。
func initTemplates(out io.Writer, dir, format string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", contract.ErrConfig, err)
	}
	b, err := cfgpkg.Render(cfgpkg.DefaultTemplateConfig(), format)
	if err != nil {
		return err
	}
	ext := ".yaml"
	if strings.EqualFold(format, "json") {
		ext = ".json"
	}
	files := []struct {
		name string
		body []byte
	}{
		{"scoutfmt" + ext, b},
		{".env", []byte(dotEnvTemplate())},
	}
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		created, err := writeNew(p, f.body)
		if err != nil {
			return fmt.Errorf("%w: %w", contract.ErrConfig, err)
		}
		if created {
			fprintf(out, "wrote %s\n", p)
		} else {
			fprintf(out, "skipped %s (exists)\n", p)
		}
	}
	return nil
}

// writeNew 仅在文件不存在时创建并写入。
func writeNew(path string, body []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}

func dotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# scoutfmt .env 模板（由 scoutfmt init 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件；空值表示未设置。\n\n")
	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("SCOUTFMT_CONFIG_FILE=\n")
	b.WriteString("SCOUTFMT_CONFIG_JSON=\n\n")
	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"WORKING_DIRECTORY", "TARGET_JSON", "TARGET_CSV", "LABEL_ORDER", "IN_PLACE", "LOG_LEVEL", "LOG_DIR"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"READER", "WRITER", "LABELER", "COMPILER", "PROJECTOR"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件选项（原样 JSON）\n")
	for _, k := range []string{"READER", "WRITER", "PROJECTOR"} {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	return b.String()
}

func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	fprintf(w, "effective config:\n%s\n", b)
}

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
