package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Taxonomy maps capability tags to the keywords that imply them.
// The decomposer tags chunks by matching request text against these keywords.
type Taxonomy struct {
	mu sync.RWMutex
	// capabilities maps a tag name to its lowercase trigger keywords.
	capabilities map[string][]string
}

// taxonomyFile is the YAML shape of a taxonomy file.
type taxonomyFile struct {
	Capabilities map[string][]string `yaml:"capabilities"`
}

// DefaultTaxonomy returns the built-in capability taxonomy.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		capabilities: map[string][]string{
			"backend":  {"api", "endpoint", "server", "database", "schema", "migration", "service"},
			"frontend": {"ui", "page", "component", "layout", "css", "render", "form"},
			"data":     {"pipeline", "etl", "dataset", "analytics", "report", "metrics", "query"},
			"infra":    {"deploy", "docker", "kubernetes", "terraform", "ci", "pipeline", "provision"},
			"writing":  {"document", "documentation", "readme", "guide", "summary", "draft"},
			"testing":  {"test", "tests", "verify", "validation", "qa", "coverage"},
			"research": {"investigate", "research", "evaluate", "compare", "survey", "benchmark"},
		},
	}
}

// LoadTaxonomy loads a capability taxonomy from a YAML file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(file.Capabilities) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no capabilities", path)
	}

	caps := make(map[string][]string, len(file.Capabilities))
	for tag, keywords := range file.Capabilities {
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			lowered = append(lowered, strings.ToLower(kw))
		}
		caps[strings.ToLower(tag)] = lowered
	}

	return &Taxonomy{capabilities: caps}, nil
}

// Tags returns all capability tags, sorted for deterministic iteration.
func (t *Taxonomy) Tags() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tags := make([]string, 0, len(t.capabilities))
	for tag := range t.capabilities {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Keywords returns the trigger keywords for a tag.
func (t *Taxonomy) Keywords(tag string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capabilities[tag]
}

// MatchTags returns the capability tags implied by the given text,
// sorted alphabetically.
func (t *Taxonomy) MatchTags(text string) []string {
	lower := strings.ToLower(text)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var tags []string
	for tag, keywords := range t.capabilities {
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// containsWord reports whether text contains kw as a whole word.
func containsWord(text, kw string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// reload replaces the taxonomy contents from another taxonomy.
func (t *Taxonomy) reload(from *Taxonomy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capabilities = from.capabilities
}

// Watch reloads the taxonomy whenever the file at path changes.
// It returns a stop function that closes the watcher. Reload failures keep
// the previous taxonomy and are reported through onError (which may be nil).
func (t *Taxonomy) Watch(path string, onError func(error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch taxonomy %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fresh, err := LoadTaxonomy(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				t.reload(fresh)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
