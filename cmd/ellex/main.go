// Command ellex is an interactive Ellex read-eval-print loop.
//
// Programs are entered in the line syntax. Blocks opened by repeat and when
// continue on following lines until their end; functions are defined with
// "to name" through "end". The REPL also understands a few directives:
//
//	:stats          cache and monitor statistics
//	:save FILE      save the session (variables, functions, config, history)
//	:load FILE      restore a saved session
//	:reset          reset the runtime
//	exit            leave
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/zephyrtronium/ellex"
)

func main() {
	var configPath, sessionPath, logPath, cpuprofile, level string
	var sampleMemory bool
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&sessionPath, "session", "", "session file to restore on start")
	flag.StringVar(&logPath, "log", "", "also write JSON logs to this file")
	flag.StringVar(&cpuprofile, "cpuprofile", "", "write a CPU profile to this file")
	flag.StringVar(&level, "level", "default", "limit preset: beginner, default, or advanced")
	flag.BoolVar(&sampleMemory, "sample-memory", false,
		"estimate memory from the whole process footprint (needs limit headroom)")
	flag.Parse()

	log := setupLogging(logPath)

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Error("create cpu profile", "path", cpuprofile, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg, err := loadConfig(configPath, level)
	if err != nil {
		log.Error("load config", "path", configPath, "err", err)
		os.Exit(1)
	}

	r := ellex.NewRuntime(cfg)
	var history []string
	if sessionPath != "" {
		s, err := ellex.LoadSession(sessionPath)
		if err != nil {
			log.Error("load session", "path", sessionPath, "err", err)
			os.Exit(1)
		}
		r = s.Restore()
		history = s.History
		log.Info("session restored", "path", sessionPath,
			"variables", len(s.Variables), "functions", len(s.Functions))
	}

	stdin := bufio.NewScanner(os.Stdin)
	r.SetInput(func(prompt string) (string, error) {
		fmt.Printf("%s? ", prompt)
		if !stdin.Scan() {
			return "", fmt.Errorf("end of input")
		}
		return stdin.Text(), nil
	})

	r.Monitor().SampleHostMemory(sampleMemory)
	repl(r, stdin, log, &history, sampleMemory)
	if err := stdin.Err(); err != nil {
		log.Error("read input", "err", err)
	}
}

// setupLogging builds the fan-out logger: text to stderr, and optionally
// JSON to a file for later inspection.
func setupLogging(logPath string) *slog.Logger {
	stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	if logPath == "" {
		return slog.New(stderr)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l := slog.New(stderr)
		l.Error("open log file", "path", logPath, "err", err)
		return l
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(stderr, file))
}

func loadConfig(path, level string) (ellex.Config, error) {
	if path != "" {
		return ellex.LoadConfig(path)
	}
	switch level {
	case "beginner":
		return ellex.BeginnerConfig(), nil
	case "advanced":
		return ellex.AdvancedConfig(), nil
	case "default", "":
		return ellex.DefaultConfig(), nil
	}
	return ellex.Config{}, fmt.Errorf("unknown level %q", level)
}

func repl(r *ellex.Runtime, stdin *bufio.Scanner, log *slog.Logger, history *[]string, sampleMemory bool) {
	for {
		src, ok := readProgram(stdin)
		if !ok {
			return
		}
		line := strings.TrimSpace(src)
		if line == "" {
			continue
		}
		*history = append(*history, src)
		switch {
		case line == "exit", line == "quit":
			return
		case line == ":reset":
			r = ellex.NewRuntime(r.Config())
			r.Monitor().SampleHostMemory(sampleMemory)
			fmt.Println("Fresh start!")
			continue
		case line == ":stats":
			printStats(r)
			continue
		case strings.HasPrefix(line, ":save "):
			path := strings.TrimSpace(line[len(":save "):])
			if err := ellex.Snapshot(r, *history).Save(path); err != nil {
				log.Error("save session", "path", path, "err", err)
			} else {
				fmt.Println("Saved to", path)
			}
			continue
		case strings.HasPrefix(line, ":load "):
			path := strings.TrimSpace(line[len(":load "):])
			s, err := ellex.LoadSession(path)
			if err != nil {
				log.Error("load session", "path", path, "err", err)
				continue
			}
			r = s.Restore()
			r.Monitor().SampleHostMemory(sampleMemory)
			*history = s.History
			fmt.Println("Loaded", path)
			continue
		}
		if name, body, ok := strings.Cut(line, "\n"); ok && strings.HasPrefix(name, "to ") {
			defineFunction(r, strings.TrimSpace(name[3:]), body, log)
			continue
		}
		run(r, src, log)
	}
}

// readProgram reads one input, continuing across lines while blocks are
// open. "to", "repeat", and "when" open blocks; "end" closes one.
func readProgram(stdin *bufio.Scanner) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		if depth == 0 {
			fmt.Print("ellex> ")
		} else {
			fmt.Print("...    ")
		}
		if !stdin.Scan() {
			return b.String(), b.Len() > 0
		}
		line := stdin.Text()
		word := strings.TrimSpace(line)
		if i := strings.IndexAny(word, " \t"); i >= 0 {
			word = word[:i]
		}
		switch word {
		case "to", "repeat", "when":
			depth++
		case "end":
			if depth > 0 {
				depth--
			}
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth == 0 {
			return b.String(), true
		}
	}
}

// defineFunction compiles "to name" ... "end" into a function. The trailing
// end line delimits the body.
func defineFunction(r *ellex.Runtime, name, body string, log *slog.Logger) {
	body = strings.TrimSpace(body)
	if !strings.HasSuffix(body, "end") {
		fmt.Println("A function needs an \"end\" line.")
		return
	}
	body = strings.TrimSuffix(body, "end")
	stmts, err := ellex.ParseProgram(body)
	if err != nil {
		fmt.Println(ellex.FriendlyMessage(err))
		log.Debug("parse function", "name", name, "err", err)
		return
	}
	r.DefineFunction(&ellex.Function{Name: name, Body: stmts})
	fmt.Printf("Now I know how to %s!\n", name)
}

func run(r *ellex.Runtime, src string, log *slog.Logger) {
	stmts, err := ellex.ParseProgram(src)
	if err != nil {
		fmt.Println(ellex.FriendlyMessage(err))
		log.Debug("parse", "err", err)
		return
	}
	v, err := r.Run(stmts)
	if err != nil {
		fmt.Println(ellex.FriendlyMessage(err))
		log.Debug("run", "err", err)
		return
	}
	for _, w := range r.Monitor().Warnings() {
		fmt.Println(w.Friendly())
	}
	if _, ok := v.(ellex.Nil); !ok {
		log.Debug("result", "value", v.String())
	}
}

func printStats(r *ellex.Runtime) {
	s := r.Monitor().Stats()
	limits := r.Monitor().Limits()
	fmt.Printf("instructions: %d\n", s.Instructions)
	fmt.Printf("elapsed: %v\n", s.Elapsed)
	fmt.Printf("memory: %d MB (%.0f%% of limit)\n", s.MemoryMB, s.MemoryPercent(limits))
	fmt.Printf("lines drawn: %d\n", len(r.Turtle().Lines()))
}
