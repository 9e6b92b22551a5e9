package risk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

// Registry manages named rule sets loaded from YAML files. The built-in
// default rule set is always registered.
type Registry struct {
	mu       sync.RWMutex
	ruleSets map[string]RuleSet
	engines  map[string]*Engine
	files    map[string]string
	dir      string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
	onChange func(event string, name string)
}

// NewRegistry creates a registry holding only the default rule set.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	r.reset()
	return r
}

// NewRegistryWithDirectory creates a registry and loads every rule set in dir.
func NewRegistryWithDirectory(dir string, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reset() {
	defaultRuleSet := DefaultRuleSet()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ruleSets = map[string]RuleSet{defaultRuleSet.Name: defaultRuleSet}
	r.engines = map[string]*Engine{defaultRuleSet.Name: NewDefaultEngine()}
	r.files = make(map[string]string)
}

// Register validates, compiles, and adds a rule set. A rule set with the
// same name replaces the existing one only when its version differs.
func (r *Registry) Register(ruleSet RuleSet) error {
	engine, err := NewEngine(ruleSet)
	if err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.ruleSets[ruleSet.Name]; ok && existing.Version == ruleSet.Version {
		return fmt.Errorf("rule set %q version %s already registered", ruleSet.Name, ruleSet.Version)
	}

	r.ruleSets[ruleSet.Name] = engine.ruleSet
	r.engines[ruleSet.Name] = engine
	return nil
}

// Unregister removes a rule set. The default rule set cannot be removed.
func (r *Registry) Unregister(name string) error {
	if name == DefaultRuleSetName {
		return fmt.Errorf("rule set %q is built in", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ruleSets[name]; !ok {
		return fmt.Errorf("rule set %q not found", name)
	}
	delete(r.ruleSets, name)
	delete(r.engines, name)
	for path, owner := range r.files {
		if owner == name {
			delete(r.files, path)
		}
	}
	return nil
}

// Get returns a copy of the named rule set.
func (r *Registry) Get(name string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ruleSet, ok := r.ruleSets[name]
	if !ok {
		return RuleSet{}, false
	}
	return ruleSet.clone(), true
}

// Engine returns the compiled engine of the named rule set.
func (r *Registry) Engine(name string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("rule set %q not found", name)
	}
	return engine, nil
}

// List returns every registered rule set sorted by name.
func (r *Registry) List() []RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ruleSets := make([]RuleSet, 0, len(r.ruleSets))
	for _, ruleSet := range r.ruleSets {
		ruleSets = append(ruleSets, ruleSet.clone())
	}
	sort.Slice(ruleSets, func(i, j int) bool {
		return ruleSets[i].Name < ruleSets[j].Name
	})
	return ruleSets
}

// Count returns the number of registered rule sets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ruleSets)
}

// LoadDirectory registers every rule set file in dir and remembers dir for
// Reload and Watch. A directory that does not exist yet holds no rule sets.
// Files that fail to load are reported together; the rest stay registered.
func (r *Registry) LoadDirectory(dir string) error {
	r.dir = dir

	paths, err := ruleSetFiles(dir)
	if err != nil {
		return err
	}

	var failures []error
	for _, path := range paths {
		if err := r.LoadFile(path); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
	}
	if err := errors.Join(failures...); err != nil {
		return fmt.Errorf("loading rule sets from %s: %w", dir, err)
	}
	return nil
}

// ruleSetFiles lists the YAML files of dir in name order.
func ruleSetFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("listing rule sets in %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isYAML(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// LoadFile loads a single YAML rule set file.
func (r *Registry) LoadFile(path string) error {
	ruleSet, err := ReadRuleSetFile(path)
	if err != nil {
		return err
	}

	if err := r.Register(ruleSet); err != nil {
		return fmt.Errorf("registering rule set: %w", err)
	}

	r.mu.Lock()
	r.files[path] = ruleSet.Name
	r.mu.Unlock()
	return nil
}

// ReadRuleSetFile parses a YAML rule set file without registering it.
func ReadRuleSetFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading file: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet parses a YAML rule set. Omitted pattern, value rule, and key
// term fields fall back to the default rule set's; an explicit empty list
// disables them.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(data, &ruleSet); err != nil {
		return RuleSet{}, fmt.Errorf("parsing YAML: %w", err)
	}

	defaults := DefaultRuleSet()
	if ruleSet.NumberPattern == "" {
		ruleSet.NumberPattern = defaults.NumberPattern
	}
	if ruleSet.DatePatterns == nil {
		ruleSet.DatePatterns = defaults.DatePatterns
	}
	if ruleSet.Modals == nil {
		ruleSet.Modals = defaults.Modals
	}
	if ruleSet.ValueRules == nil {
		ruleSet.ValueRules = defaults.ValueRules
	}
	if ruleSet.KeyTerms == nil {
		ruleSet.KeyTerms = defaults.KeyTerms
	}
	return ruleSet, nil
}

// ToYAML serializes the rule set.
func (rs RuleSet) ToYAML() ([]byte, error) {
	return yaml.Marshal(rs)
}

// Reload clears every loaded rule set and reloads the configured directory.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}
	r.reset()
	return r.LoadDirectory(r.dir)
}

// SetOnChange sets a callback invoked after a watched file is loaded or removed.
func (r *Registry) SetOnChange(fn func(event string, name string)) {
	r.onChange = fn
}

// Watch starts watching the rule set directory for changes.
func (r *Registry) Watch() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	go r.watchLoop(watcher, r.stopChan, r.done)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")
			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")
			case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("rule set watcher error", zap.Error(err))
		}
	}
}

func (r *Registry) handleFileChange(path string, event string) {
	ruleSet, err := ReadRuleSetFile(path)
	if err == nil {
		// A rewrite with an unchanged version should still take effect.
		r.forget(path, ruleSet.Name)
		err = r.LoadFile(path)
	}
	if err != nil {
		r.logger.Warn("rule set reload failed", zap.String("path", path), zap.Error(err))
		return
	}

	r.logger.Info("rule set loaded", zap.String("event", event), zap.String("name", ruleSet.Name), zap.String("path", path))
	if r.onChange != nil {
		r.onChange(event, ruleSet.Name)
	}
}

func (r *Registry) handleFileRemove(path string) {
	r.mu.RLock()
	name, ok := r.files[path]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if name != DefaultRuleSetName {
		if err := r.Unregister(name); err != nil {
			r.logger.Warn("rule set removal failed", zap.String("path", path), zap.Error(err))
			return
		}
	}

	r.logger.Info("rule set removed", zap.String("name", name), zap.String("path", path))
	if r.onChange != nil {
		r.onChange("remove", name)
	}
}

// forget drops a file-loaded rule set so the file can be re-registered.
func (r *Registry) forget(path, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.files[path]; !ok || owner != name {
		return
	}
	if name == DefaultRuleSetName {
		defaultRuleSet := DefaultRuleSet()
		r.ruleSets[name] = defaultRuleSet
		r.engines[name] = NewDefaultEngine()
		return
	}
	delete(r.ruleSets, name)
	delete(r.engines, name)
}

// StopWatch stops watching and waits for the watch goroutine to exit.
func (r *Registry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
	if r.done != nil {
		<-r.done
		r.done = nil
	}
}

// isYAML reports whether a file name or path has a YAML extension.
func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
