package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mtpcrib/internal/attack"
	cfgpkg "mtpcrib/internal/config"
	"mtpcrib/internal/diag"
	"mtpcrib/pkg/registry"
)

var attackRun = attack.Run

// 退出码：0 成功；1 运行失败；3 配置/输入错误。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

// CLI：位置参数为词典层（文件/目录，按优先级从高到低）；
// 密文来源由 --ciphertexts 或配置提供。"-" 表示 STDIN，全部输入中至多一次。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先用 stderr 占位，配置合并后按最终 level/dir 重建
	logger := diag.NewLoggerAt(corrID, "info", "")
	defer func() { _ = logger.Close() }()

	var (
		flagConfig      string
		flagCiphertexts string
		flagWorkers     int
		flagMinLen      int
		flagMaxOffsets  int
		flagQuorum      int
		flagTrim        bool
		flagReport      string
		flagIndexCache  string
		flagList        bool
		flagInitDir     string
		flagStatus      bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	flag.StringVar(&flagCiphertexts, "ciphertexts", "", "密文文件/目录，逗号分隔（覆盖配置）")
	// 整型旗标默认 -1 表示“未覆盖”，以便显式设置 0。
	flag.IntVar(&flagWorkers, "workers", -1, "分片/worker 数；0 表示 CPU 数（覆盖配置）")
	flag.IntVar(&flagMinLen, "min-len", -1, "拖词最短词长（覆盖配置）")
	flag.IntVar(&flagMaxOffsets, "max-offsets", -1, "每词最多尝试的偏移数；0 不限（覆盖配置）")
	flag.IntVar(&flagQuorum, "quorum", -1, "锚点组内需通过的异或对数；0 表示全部（覆盖配置）")
	flag.BoolVar(&flagTrim, "trim", false, "密文长度不等时截断到最短（覆盖配置）")
	flag.StringVar(&flagReport, "report", "", "报告工件名（写入 writer 输出目录）")
	flag.StringVar(&flagIndexCache, "index-cache", "", "后缀索引缓存工件名（写入 writer 输出目录）")
	flag.BoolVar(&flagList, "list", false, "在 stdout 逐行列出每个命中（词、异或对、偏移）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（若已存在则跳过，不覆盖）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	normalizeInitArg()
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return exitConfig
	}

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Fail("cli", "init-config failed", err, initDir, "")
			return exitConfig
		}
		if err := writeConfig(filepath.Join(initDir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Fail("cli", "init-config failed", err, initDir, "")
			return exitConfig
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return exitOK
	}

	// JSON 配置（文件或 ENV: MTPCRIB_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if flagConfig == "" {
		flagConfig = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if flagConfig == "" {
		if _, err := os.Stat("config.json"); err == nil {
			flagConfig = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(flagConfig, cfgJSON)
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Fail("config", "load failed", err, flagConfig, "")
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Fail("config", "env overlay failed", err, "", "")
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	overCLI := cfgpkg.Unset()
	overCLI.Ciphertexts = splitList(flagCiphertexts)
	overCLI.Dictionaries = flag.Args()
	overCLI.Workers = flagWorkers
	overCLI.MinLen = flagMinLen
	overCLI.MaxOffsets = flagMaxOffsets
	overCLI.Quorum = flagQuorum
	overCLI.TrimToShortest = flagTrim
	overCLI.Report = flagReport
	overCLI.IndexCache = flagIndexCache
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(os.Stderr, cfg)
		logger.Fail("config", "validate failed", err, "", "")
		return exitConfig
	}

	// 使用最终配置中的日志级别与目录重建 logger
	logDir := cfg.Logging.Dir
	if strings.TrimSpace(logDir) == "" {
		logDir = diag.DefaultLogDir
	}
	_ = logger.Close()
	logger = diag.NewLoggerAt(corrID, cfg.Logging.Level, logDir)

	if cfg.Report != "" || cfg.IndexCache != "" {
		if err := preflightCheckOutputDir(cfg); err != nil {
			fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
			logger.Fail("writer", "preflight failed", err, "", "")
			return exitConfig
		}
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Fail("config", "assemble failed", err, "", "")
		return exitConfig
	}

	logger.Debug("config", "effective", "", "", map[string]string{
		"ciphertexts":   strconv.Itoa(len(cfg.Ciphertexts)),
		"dictionaries":  strconv.Itoa(len(cfg.Dictionaries)),
		"workers":       strconv.Itoa(cfg.Workers),
		"min_len":       strconv.Itoa(cfg.MinLen),
		"max_offsets":   strconv.Itoa(cfg.MaxOffsets),
		"quorum":        strconv.Itoa(cfg.Quorum),
		"trim":          strconv.FormatBool(cfg.TrimToShortest),
		"cipher_parser": cfg.Components.CipherParser,
		"word_parser":   cfg.Components.WordParser,
		"validator":     cfg.Components.Validator,
		"reporter":      cfg.Components.Reporter,
	})

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("attack", "run")
	out, err := attackRun(ctx, comp, set, logger)
	matches := 0
	if out != nil {
		matches = len(out.Summary.Matches)
	}
	if err != nil {
		code := logger.Fail("attack", "first error", err, "", "")
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, matches, time.Since(start))
		dumpMetrics(logger)
		if code == diag.CodeInput {
			return exitConfig
		}
		return exitRun
	}
	t.Finish("run", int64(matches))
	term.RunFinish(true, matches, time.Since(start))

	if flagList {
		printMatches(os.Stdout, out)
	}
	fmt.Fprintf(os.Stdout, "matches: %d\nelapsed: %s\n", matches, time.Since(start).Round(time.Millisecond))
	dumpMetrics(logger)
	return exitOK
}

// printMatches 逐行输出 word<TAB>pair<TAB>offset，顺序与报告一致。
func printMatches(w io.Writer, out *attack.Outcome) {
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	for _, m := range out.Summary.Matches {
		fmt.Fprintf(bw, "%s\t%s\t%d\n", m.Word, m.Pair, m.Offset)
	}
}

// dumpMetrics 在 debug 级别把进程内计数写入日志。
func dumpMetrics(logger *diag.Logger) {
	snap := diag.Snapshot()
	if len(snap) == 0 {
		return
	}
	kv := make(map[string]string, len(snap))
	for _, m := range snap {
		kv[m.Name] = strconv.FormatInt(m.Value, 10)
	}
	logger.Debug("metrics", "snapshot", "", "", kv)
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// splitList 拆分逗号分隔的路径列表；空串返回 nil（不覆盖）。
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "；
// - 仅按首个 '=' 分割；成对的单/双引号会被去除；
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 {
			if (val[0] == '\'' && val[len(val)-1] == '\'') || (val[0] == '"' && val[len(val)-1] == '"') {
				val = val[1 : len(val)-1]
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用当前目录 "."。
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# mtpcrib .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 运行参数覆盖\n")
	for _, k := range []string{
		"CIPHERTEXTS", "DICTIONARIES", "WORKERS", "MIN_LEN", "MAX_OFFSETS",
		"QUORUM", "TRIM_TO_SHORTEST", "INDEX_CACHE", "REPORT", "LOG_LEVEL", "LOG_DIR",
	} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（OPTIONS_*_JSON 为原样 JSON）\n")
	for _, k := range []string{
		"READER", "CIPHER_PARSER", "WORD_PARSER", "SHARDER",
		"VALIDATOR", "CODEC", "WRITER", "REPORTER",
	} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 目录存在则尝试创建并删除临时文件；不存在则检查父目录。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	writerName := strings.TrimSpace(cfg.Components.Writer)
	if writerName == "" {
		writerName = cfgpkg.Defaults().Components.Writer
	}
	if writerName != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 未指定时让装配阶段按实现自行报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmpd)
}

// componentList 供 --help 输出已注册组件。
func componentList() string {
	names := registry.Names()
	kinds := []string{"reader", "cipher_parser", "word_parser", "sharder", "validator", "codec", "writer", "reporter"}
	var b strings.Builder
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-14s %s\n", k, strings.Join(names[k], ", "))
	}
	return b.String()
}

func init() {
	flag.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "用法: %s [flags] <dictionary>...\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		fmt.Fprintf(w, "\n已注册组件:\n%s", componentList())
	}
}
