package ftl

import (
	goerrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ftlgo/ftl/internal/parser"
	"github.com/ftlgo/ftl/value"
)

// DefaultRegexCacheSize is the number of compiled patterns kept by the
// regular expression cache of a new Configuration.
const DefaultRegexCacheSize = 256

// Settings are the engine settings a render starts with. Templates may
// change most of them with <#setting>.
type Settings struct {
	// Locale is a BCP 47 tag such as "en-US" or "de".
	Locale string `yaml:"locale"`
	// TimeZone is an IANA zone name such as "Europe/Budapest".
	TimeZone string `yaml:"time_zone"`
	// NumberFormat is "number", "computer", "currency", "percent" or a
	// decimal pattern such as "0.00" or "#,##0.###".
	NumberFormat string `yaml:"number_format"`
	// BooleanFormat is "c", or two comma separated words for true and
	// false, like "yes,no".
	BooleanFormat string `yaml:"boolean_format"`
	// DateFormat, TimeFormat and DateTimeFormat are "short", "medium",
	// "long", "full", "iso" or a date pattern like "yyyy-MM-dd".
	DateFormat     string `yaml:"date_format"`
	TimeFormat     string `yaml:"time_format"`
	DateTimeFormat string `yaml:"datetime_format"`
	// URLEscapingCharset is the charset ?url encodes with.
	URLEscapingCharset string `yaml:"url_escaping_charset"`
	// ArithmeticEngine is "bigdecimal" or "conservative".
	ArithmeticEngine string `yaml:"arithmetic_engine"`
	// OutputFormat is "plainText", "HTML" or "XML". Templates ending in
	// .ftlh and .ftlx always use HTML and XML.
	OutputFormat string `yaml:"output_format"`
	// StrictVars makes every namespace require <#var> declarations.
	StrictVars bool `yaml:"strict_vars"`
	// MaxRecursion bounds the depth of macro calls and includes.
	MaxRecursion int `yaml:"max_recursion"`
	// Fuel limits the work a single render may do. Zero means unlimited.
	Fuel uint64 `yaml:"fuel"`
}

// DefaultSettings returns the settings of a new Configuration.
func DefaultSettings() Settings {
	return Settings{
		Locale:             "en-US",
		TimeZone:           "UTC",
		NumberFormat:       "number",
		BooleanFormat:      "true,false",
		DateFormat:         "medium",
		TimeFormat:         "medium",
		DateTimeFormat:     "medium",
		URLEscapingCharset: "UTF-8",
		ArithmeticEngine:   "bigdecimal",
		OutputFormat:       "plainText",
		MaxRecursion:       200,
	}
}

// ParseSettings decodes YAML settings on top of DefaultSettings. Unknown
// keys are rejected. A document without keys gives the defaults.
func ParseSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	src, err := io.ReadAll(r)
	if err != nil {
		return s, newErrorf(ErrIO, "reading settings: %v", err).WithCause(err)
	}
	var keys map[string]any
	if err := yaml.Unmarshal(src, &keys); err != nil {
		return s, newErrorf(ErrInvalidOperation, "invalid settings: %v", err).WithCause(err)
	}
	if len(keys) == 0 {
		return s, nil
	}
	if err := yaml.UnmarshalWithOptions(src, &s, yaml.DisallowUnknownField()); err != nil {
		return DefaultSettings(), newErrorf(ErrInvalidOperation, "invalid settings: %v", err).WithCause(err)
	}
	return s, nil
}

// LoadSettings reads a YAML settings file.
func LoadSettings(filename string) (Settings, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()
	return ParseSettings(f)
}

// LoaderFunc loads template source by name. It should return an error
// wrapping fs.ErrNotExist for unknown names.
type LoaderFunc func(name string) (string, error)

// MapLoader serves templates from a map.
func MapLoader(sources map[string]string) LoaderFunc {
	return func(name string) (string, error) {
		src, ok := sources[name]
		if !ok {
			return "", fs.ErrNotExist
		}
		return src, nil
	}
}

// FileSystemLoader serves templates from a file system, for example an
// os.DirFS or an embed.FS.
func FileSystemLoader(fsys fs.FS) LoaderFunc {
	return func(name string) (string, error) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Option configures a Configuration.
type Option func(*Configuration)

// WithLoader sets the function used to load templates that are not in the
// cache.
func WithLoader(loader LoaderFunc) Option {
	return func(c *Configuration) { c.loader = loader }
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Configuration) { c.logger = logger }
}

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Configuration) { c.settings = s }
}

// WithRegexCache injects the cache compiled regular expressions are kept
// in. Tests use it to start from an empty cache.
func WithRegexCache(cache *lru.Cache[string, *regexp.Regexp]) Option {
	return func(c *Configuration) { c.regexps = cache }
}

// WithPropertyAccessor sets how members of opaque host objects are
// resolved.
func WithPropertyAccessor(accessor value.PropertyAccessor) Option {
	return func(c *Configuration) { c.accessor = accessor }
}

// Configuration holds the settings, shared variables and compiled templates
// of an application. It is safe for concurrent use; every render gets its
// own Environment.
type Configuration struct {
	templates   map[string]*Template
	templatesMu sync.RWMutex
	loader      LoaderFunc
	settings    Settings
	shared      map[string]value.Value
	frozen      *frozenSet
	sharedMu    sync.RWMutex
	logger      *slog.Logger
	regexps     *lru.Cache[string, *regexp.Regexp]
	accessor    value.PropertyAccessor
}

// NewConfiguration creates a configuration with default settings.
func NewConfiguration(opts ...Option) *Configuration {
	c := &Configuration{
		templates: make(map[string]*Template),
		settings:  DefaultSettings(),
		shared:    make(map[string]value.Value),
		frozen:    newFrozenSet(),
		accessor:  value.ReflectAccessor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.regexps == nil {
		// only fails for non-positive sizes
		c.regexps, _ = lru.New[string, *regexp.Regexp](DefaultRegexCacheSize)
	}
	return c
}

// Settings returns a copy of the default settings.
func (c *Configuration) Settings() Settings {
	return c.settings
}

// Logger returns the configured logger.
func (c *Configuration) Logger() *slog.Logger {
	return c.logger
}

// SetSharedVariable makes a value visible to every template, after the
// data model in lookup order. Go functions become callables. Hashes and
// sequences of shared variables are read-only for templates.
func (c *Configuration) SetSharedVariable(name string, v any) {
	val := value.FromAny(v)
	c.sharedMu.Lock()
	c.shared[name] = val
	c.frozen.add(val)
	c.sharedMu.Unlock()
}

func (c *Configuration) sharedVariable(name string) (value.Value, bool) {
	c.sharedMu.RLock()
	v, ok := c.shared[name]
	c.sharedMu.RUnlock()
	return v, ok
}

func (c *Configuration) sharedNames() []string {
	c.sharedMu.RLock()
	defer c.sharedMu.RUnlock()
	names := make([]string, 0, len(c.shared))
	for k := range c.shared {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AddTemplate parses source and stores it in the cache under name.
func (c *Configuration) AddTemplate(name, source string) error {
	name = normalizeName(name)
	tmpl, err := c.parse(name, source)
	if err != nil {
		return err
	}
	c.templatesMu.Lock()
	c.templates[name] = tmpl
	c.templatesMu.Unlock()
	return nil
}

// RemoveTemplate drops a template from the cache.
func (c *Configuration) RemoveTemplate(name string) {
	c.templatesMu.Lock()
	delete(c.templates, name)
	c.templatesMu.Unlock()
}

// ClearTemplateCache drops every cached template.
func (c *Configuration) ClearTemplateCache() {
	c.templatesMu.Lock()
	c.templates = make(map[string]*Template)
	c.templatesMu.Unlock()
}

// GetTemplate returns a cached template, loading and parsing it through
// the loader on a miss.
func (c *Configuration) GetTemplate(name string) (*Template, error) {
	name = normalizeName(name)
	c.templatesMu.RLock()
	tmpl, ok := c.templates[name]
	c.templatesMu.RUnlock()
	if ok {
		return tmpl, nil
	}

	source, err := c.load(name)
	if err != nil {
		return nil, err
	}
	tmpl, err = c.parse(name, source)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("template loaded", slog.String("template", name))

	c.templatesMu.Lock()
	if cached, ok := c.templates[name]; ok {
		tmpl = cached
	} else {
		c.templates[name] = tmpl
	}
	c.templatesMu.Unlock()
	return tmpl, nil
}

func (c *Configuration) load(name string) (string, error) {
	if c.loader == nil {
		return "", newErrorf(ErrTemplateNotFound, "template %q not found", name)
	}
	source, err := c.loader(name)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return "", newErrorf(ErrTemplateNotFound, "template %q not found", name).WithCause(err)
		}
		return "", newErrorf(ErrIO, "loading template %q: %v", name, err).WithCause(err)
	}
	return source, nil
}

// templateSource returns the source of a template without parsing it.
func (c *Configuration) templateSource(name string) (string, error) {
	name = normalizeName(name)
	c.templatesMu.RLock()
	tmpl, ok := c.templates[name]
	c.templatesMu.RUnlock()
	if ok {
		return tmpl.Source(), nil
	}
	return c.load(name)
}

// TemplateFromString parses a template without storing it in the cache.
func (c *Configuration) TemplateFromString(name, source string) (*Template, error) {
	return c.parse(name, source)
}

func (c *Configuration) parse(name, source string) (*Template, error) {
	ast, err := parser.Parse(name, source)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("template parsed", slog.String("template", name), slog.Int("size", len(source)))
	return newTemplate(c, ast)
}

// regexp returns the compiled pattern for a flag set, compiling on a miss.
func (c *Configuration) regexp(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "/" + pattern
	if re, ok := c.regexps.Get(key); ok {
		return re, nil
	}
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		}
	}
	expr := pattern
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, newErrorf(ErrBadArguments, "invalid regular expression %q: %v", pattern, err)
	}
	c.regexps.Add(key, re)
	c.logger.Debug("regular expression compiled", slog.String("pattern", pattern), slog.String("flags", flags))
	return re, nil
}

// resolveName resolves a template name relative to the directory of the
// template that references it. Names starting with "/" are absolute.
func resolveName(current, name string) string {
	if strings.HasPrefix(name, "/") || current == "" {
		return normalizeName(name)
	}
	return normalizeName(path.Join(path.Dir(current), name))
}

func normalizeName(name string) string {
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}
