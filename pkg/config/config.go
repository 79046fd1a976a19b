package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config is a parsed INI file. Section names are matched exactly and
// option names case insensitively. Section lookups are recorded, like
// option reads, for the unused-settings report.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
	touched  map[string]bool
}

func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
		touched:  make(map[string]bool),
	}
}

// Load reads an INI file. A line "#INCLUDE path" splices in another
// file, resolved relative to the including file.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.parseFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses INI text. Include directives are not allowed.
func LoadString(data string) (*Config, error) {
	c := New()
	p := parser{c: c, name: "<string>"}
	if err := p.parse(strings.NewReader(data)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer func() { visited[abs] = false }()

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	p := parser{
		c:    c,
		name: path,
		include: func(file string) error {
			return c.parseFile(filepath.Join(filepath.Dir(abs), file), visited)
		},
	}
	return p.parse(f)
}

// parser holds the state of one file being read. Options seen before
// the first section header are ignored.
type parser struct {
	c       *Config
	name    string
	include func(file string) error

	section string
	options map[string]string
}

func (p *parser) flush() {
	if p.section != "" {
		p.c.addSection(p.section, p.options)
	}
	p.section = ""
	p.options = nil
}

func (p *parser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if rest, ok := cutPrefixFold(line, "#INCLUDE"); ok {
			file := strings.TrimSpace(rest)
			if file == "" {
				return fmt.Errorf("config: empty include at line %d in %s", lineNum, p.name)
			}
			if p.include == nil {
				return fmt.Errorf("config: include not allowed at line %d in %s", lineNum, p.name)
			}
			// the included file closes the current section
			p.flush()
			if err := p.include(file); err != nil {
				return err
			}
			continue
		}
		if line[0] == '#' || line[0] == ';' {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			p.flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at line %d in %s", lineNum, p.name)
			}
			p.section = header
			p.options = make(map[string]string)
			continue
		}
		if p.section == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			key, value, ok = strings.Cut(line, ":")
		}
		if !ok {
			return fmt.Errorf("config: expected KEY = VALUE at line %d in %s", lineNum, p.name)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		p.options[key] = stripComment(strings.TrimSpace(value))
	}
	p.flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: error reading %s: %w", p.name, err)
	}
	return nil
}

// stripComment drops a trailing comment introduced by whitespace and
// '#' or ';'.
func stripComment(v string) string {
	for i := 1; i < len(v); i++ {
		if (v[i] == '#' || v[i] == ';') && (v[i-1] == ' ' || v[i-1] == '\t') {
			return strings.TrimSpace(v[:i])
		}
	}
	return v
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// addSection registers a parsed block. A repeated header extends the
// earlier section; later values win.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec := c.sections[name]
	if sec == nil {
		c.sections[name] = newSection(name, options)
		c.order = append(c.order, name)
		return
	}
	for k, v := range options {
		sec.values[strings.ToLower(k)] = v
	}
}

// find returns the named section, marking it used when present.
func (c *Config) find(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec := c.sections[name]
	if sec != nil {
		c.touched[name] = true
	}
	return sec
}

func (c *Config) GetSection(name string) (*Section, error) {
	if sec := c.find(name); sec != nil {
		return sec, nil
	}
	return nil, ErrMissingSection(name)
}

// GetSectionOptional is GetSection returning nil for a missing section.
func (c *Config) GetSectionOptional(name string) *Section { return c.find(name) }

func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sections[name] != nil
}

// GetSectionNames returns the section names in the order they first
// appeared.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// GetUnusedSections lists, sorted, the sections nothing looked up.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for _, name := range c.order {
		if !c.touched[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UnusedOptions reports "[SECTION]key" for each unread option of the
// sections that were looked up. Untouched sections are reported by
// GetUnusedSections instead.
func (c *Config) UnusedOptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.order {
		if !c.touched[name] {
			continue
		}
		for _, opt := range c.sections[name].GetUnusedOptions() {
			out = append(out, "["+name+"]"+opt)
		}
	}
	sort.Strings(out)
	return out
}
