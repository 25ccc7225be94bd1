package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// LoadFile reads a YAML file, expands env vars, and unmarshals into dest.
func LoadFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Loader owns the advisor, candidate and budget files of one config
// directory and reloads them when they change on disk.
type Loader struct {
	configDir  string
	mu         sync.RWMutex
	cfg        *Config
	candidates *CandidatesConfig
	budgets    *BudgetsConfig
	watchers   []func()
	logger     *slog.Logger
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(l.configDir, "advisor.yaml"), cfg); err != nil {
		return fmt.Errorf("load advisor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate advisor config: %w", err)
	}

	candidates := &CandidatesConfig{}
	if err := LoadFile(filepath.Join(l.configDir, "candidates.yaml"), candidates); err != nil {
		return fmt.Errorf("load candidates config: %w", err)
	}

	// budgets.yaml is optional; budgets can also be managed over the API.
	budgets := &BudgetsConfig{}
	if err := LoadFile(filepath.Join(l.configDir, "budgets.yaml"), budgets); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load budgets config: %w", err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.candidates = candidates
	l.budgets = budgets
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "dir", l.configDir, "candidates", len(candidates.Candidates), "budgets", len(budgets.Budgets))
	return nil
}

func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

func (l *Loader) Candidates() *CandidatesConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.candidates
}

func (l *Loader) Budgets() *BudgetsConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.budgets
}

// OnReload registers a callback that fires after config is reloaded.
func (l *Loader) OnReload(fn func()) {
	l.watchers = append(l.watchers, fn)
}

// Watch starts watching the config directory for changes and reloads on modification.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.configDir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".yaml" {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					l.logger.Info("config file changed, reloading", "file", event.Name)
					if err := l.Load(); err != nil {
						l.logger.Error("failed to reload config", "error", err)
						continue
					}
					for _, fn := range l.watchers {
						fn()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}
