// Command fmwatch is a small demonstration wrapper around the monitor
// package: it loads a YAML config naming a root directory, a cache file,
// and a list of path patterns, then uses fsnotify purely as a trigger —
// each burst of fsnotify events, once it settles for the debounce
// interval, causes it to re-run monitor.Check and log the result. The poll-based Check call remains the source of truth; the
// watcher only decides when to ask again, the same role a human hitting
// "rebuild" would otherwise play.
package main

import (
	"context"
	"encoding/gob"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	monitor "github.com/kbuild/filemonitor"
)

func init() {
	// fmwatch uses the root path itself as the cache key and the string
	// "ok" as the placeholder result; gob requires every concrete type stored behind
	// an interface field to be registered before first use.
	gob.Register("")
}

// Config is the on-disk shape of fmwatch's config file.
type Config struct {
	Root      string   `yaml:"root"`
	CachePath string   `yaml:"cachePath"`
	Paths     []string `yaml:"paths"`
	Debounce  string   `yaml:"debounce"`
}

func main() {
	configPath := flag.String("config", "fmwatch.yaml", "path to fmwatch config file")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	debounce := 100 * time.Millisecond
	if cfg.Debounce != "" {
		if d, err := time.ParseDuration(cfg.Debounce); err == nil {
			debounce = d
		}
	}

	paths := make([]monitor.MonitorPath, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		paths = append(paths, parsePathPattern(p))
	}

	m := monitor.New(cfg.CachePath, monitor.WithLogger(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runCheck := func() {
		res, err := m.Check(cfg.Root, cfg.Root)
		if err != nil {
			log.Error("check failed", zap.Error(err))
			return
		}
		switch res.Reason {
		case monitor.ReasonNone:
			log.Info("unchanged")
		default:
			log.Info("changed, rebuilding",
				zap.String("reason", res.Reason.String()),
				zap.String("changedPath", res.ChangedPath))
			start, _ := m.BeginUpdate()
			if err := m.Update(cfg.Root, &start, paths, cfg.Root, "ok"); err != nil {
				log.Error("update failed", zap.Error(err))
			}
		}
	}

	runCheck()

	if err := watch(ctx, log, cfg.Root, debounce, runCheck); err != nil {
		log.Fatal("watch", zap.Error(err))
	}
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

// parsePathPattern builds a monitor.MonitorPath from a simple slash
// path. A path without "*" becomes a SinglePath. A path with "*" in any
// segment becomes a glob: its final segment a GlobFile pattern and each
// earlier segment a GlobDir pattern, all matched in filepath.Match syntax.
func parsePathPattern(pattern string) monitor.MonitorPath {
	pattern = filepath.ToSlash(pattern)
	if !strings.Contains(pattern, "*") {
		return monitor.SinglePath{
			FileKind: monitor.FileHashedKind,
			DirKind:  monitor.DirModTimeKind,
			Path:     pattern,
		}
	}

	segments := strings.Split(pattern, "/")
	last := segments[len(segments)-1]
	dirs := segments[:len(segments)-1]

	var g monitor.Glob = monitor.GlobFile{Pieces: []string{last}}
	for i := len(dirs) - 1; i >= 0; i-- {
		g = monitor.GlobDir{Pieces: []string{dirs[i]}, SubGlob: g}
	}

	return monitor.GlobPath{
		FileKind: monitor.FileHashedKind,
		DirKind:  monitor.DirNotExists,
		Glob: monitor.RootedGlob{
			Root: monitor.FilePathRoot{Kind: monitor.RootRelative},
			Glob: g,
		},
	}
}

// watch runs a debounced fsnotify loop over root, recursively, calling
// onChange whenever something settles after a burst of events.
func watch(ctx context.Context, log *zap.Logger, root string, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("fsnotify error", zap.Error(err))

		case <-fire:
			onChange()
		}
	}
}
