// Package lang maps editor language identifiers to their comment syntax.
package lang

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Style names a family of comment syntax.
type Style string

const (
	StyleC      Style = "c"      // "//" and "/* */"
	StyleHash   Style = "hash"   // "#"
	StyleDash   Style = "dash"   // "--"
	StyleMarkup Style = "markup" // "<!-- -->"
	StyleLisp   Style = "lisp"   // ";"
	StylePct    Style = "percent"
	StyleQuote  Style = "quote" // '"' (vim) and "'" (basic)
	StyleNone   Style = "none"
)

// Descriptor describes a language's comment syntax. An empty token means
// the language has no comment of that form.
type Descriptor struct {
	ID         string
	Name       string
	Style      Style
	Line       string
	BlockStart string
	BlockEnd   string
}

// HasLine reports whether the language has single-line comments.
func (d Descriptor) HasLine() bool { return d.Line != "" }

// HasBlock reports whether the language has block comments.
func (d Descriptor) HasBlock() bool { return d.BlockStart != "" && d.BlockEnd != "" }

// Plaintext is returned for unknown languages.
var Plaintext = Descriptor{ID: "plaintext", Name: "Plain Text", Style: StyleNone}

func c(id, name string) Descriptor {
	return Descriptor{ID: id, Name: name, Style: StyleC, Line: "//", BlockStart: "/*", BlockEnd: "*/"}
}

func hash(id, name string) Descriptor {
	return Descriptor{ID: id, Name: name, Style: StyleHash, Line: "#"}
}

func markup(id, name string) Descriptor {
	return Descriptor{ID: id, Name: name, Style: StyleMarkup, BlockStart: "<!--", BlockEnd: "-->"}
}

var descriptors = []Descriptor{
	c("c", "C"),
	c("cpp", "C++"),
	c("csharp", "C#"),
	c("dart", "Dart"),
	c("go", "Go"),
	c("groovy", "Groovy"),
	c("java", "Java"),
	c("javascript", "JavaScript"),
	c("javascriptreact", "JavaScript React"),
	c("jsonc", "JSON with Comments"),
	c("kotlin", "Kotlin"),
	c("less", "Less"),
	c("objective-c", "Objective-C"),
	c("php", "PHP"),
	c("proto3", "Protocol Buffers"),
	c("rust", "Rust"),
	c("scala", "Scala"),
	c("scss", "SCSS"),
	c("swift", "Swift"),
	c("typescript", "TypeScript"),
	c("typescriptreact", "TypeScript React"),
	c("zig", "Zig"),
	{ID: "css", Name: "CSS", Style: StyleC, BlockStart: "/*", BlockEnd: "*/"},
	{ID: "fsharp", Name: "F#", Style: StyleC, Line: "//", BlockStart: "(*", BlockEnd: "*)"},
	hash("coffeescript", "CoffeeScript"),
	hash("dockerfile", "Dockerfile"),
	hash("elixir", "Elixir"),
	hash("makefile", "Makefile"),
	hash("perl", "Perl"),
	hash("powershell", "PowerShell"),
	hash("r", "R"),
	hash("shellscript", "Shell Script"),
	hash("toml", "TOML"),
	hash("yaml", "YAML"),
	{ID: "python", Name: "Python", Style: StyleHash, Line: "#", BlockStart: `"""`, BlockEnd: `"""`},
	{ID: "ruby", Name: "Ruby", Style: StyleHash, Line: "#", BlockStart: "=begin", BlockEnd: "=end"},
	{ID: "julia", Name: "Julia", Style: StyleHash, Line: "#", BlockStart: "#=", BlockEnd: "=#"},
	{ID: "nim", Name: "Nim", Style: StyleHash, Line: "#", BlockStart: "#[", BlockEnd: "]#"},
	{ID: "lua", Name: "Lua", Style: StyleDash, Line: "--", BlockStart: "--[[", BlockEnd: "]]"},
	{ID: "sql", Name: "SQL", Style: StyleDash, Line: "--", BlockStart: "/*", BlockEnd: "*/"},
	{ID: "haskell", Name: "Haskell", Style: StyleDash, Line: "--", BlockStart: "{-", BlockEnd: "-}"},
	{ID: "elm", Name: "Elm", Style: StyleDash, Line: "--", BlockStart: "{-", BlockEnd: "-}"},
	{ID: "clojure", Name: "Clojure", Style: StyleLisp, Line: ";;"},
	{ID: "lisp", Name: "Lisp", Style: StyleLisp, Line: ";", BlockStart: "#|", BlockEnd: "|#"},
	{ID: "ini", Name: "INI", Style: StyleLisp, Line: ";"},
	{ID: "erlang", Name: "Erlang", Style: StylePct, Line: "%"},
	{ID: "latex", Name: "LaTeX", Style: StylePct, Line: "%"},
	{ID: "matlab", Name: "MATLAB", Style: StylePct, Line: "%", BlockStart: "%{", BlockEnd: "%}"},
	{ID: "vb", Name: "Visual Basic", Style: StyleQuote, Line: "'"},
	{ID: "vim", Name: "Vim Script", Style: StyleQuote, Line: `"`},
	{ID: "bat", Name: "Batch", Style: StyleQuote, Line: "REM"},
	markup("html", "HTML"),
	markup("xml", "XML"),
	markup("markdown", "Markdown"),
	markup("vue", "Vue"),
	markup("svelte", "Svelte"),
	{ID: "json", Name: "JSON", Style: StyleNone},
	Plaintext,
}

var aliases = map[string]string{
	"js":         "javascript",
	"jsx":        "javascriptreact",
	"ts":         "typescript",
	"tsx":        "typescriptreact",
	"golang":     "go",
	"py":         "python",
	"rb":         "ruby",
	"rs":         "rust",
	"sh":         "shellscript",
	"bash":       "shellscript",
	"zsh":        "shellscript",
	"shell":      "shellscript",
	"c++":        "cpp",
	"c#":         "csharp",
	"cs":         "csharp",
	"yml":        "yaml",
	"md":         "markdown",
	"text":       "plaintext",
	"txt":        "plaintext",
	"objc":       "objective-c",
	"proto":      "proto3",
	"kt":         "kotlin",
	"ps1":        "powershell",
	"make":       "makefile",
	"docker":     "dockerfile",
	"tex":        "latex",
	"plain text": "plaintext",
}

var extensions = map[string]string{
	".c": "c", ".h": "c",
	".cc": "cpp", ".cpp": "cpp", ".cxx": "cpp", ".hpp": "cpp", ".hh": "cpp",
	".cs": "csharp", ".dart": "dart", ".go": "go", ".groovy": "groovy", ".gradle": "groovy",
	".java": "java", ".js": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".jsx": "javascriptreact", ".jsonc": "jsonc", ".kt": "kotlin", ".kts": "kotlin",
	".less": "less", ".m": "objective-c", ".php": "php", ".proto": "proto3",
	".rs": "rust", ".scala": "scala", ".scss": "scss", ".swift": "swift",
	".ts": "typescript", ".mts": "typescript", ".tsx": "typescriptreact", ".zig": "zig",
	".css": "css", ".fs": "fsharp", ".fsx": "fsharp", ".coffee": "coffeescript",
	".ex": "elixir", ".exs": "elixir", ".mk": "makefile", ".pl": "perl", ".pm": "perl",
	".ps1": "powershell", ".r": "r", ".sh": "shellscript", ".bash": "shellscript",
	".zsh": "shellscript", ".toml": "toml", ".yaml": "yaml", ".yml": "yaml",
	".py": "python", ".pyi": "python", ".rb": "ruby", ".jl": "julia", ".nim": "nim",
	".lua": "lua", ".sql": "sql", ".hs": "haskell", ".elm": "elm",
	".clj": "clojure", ".cljs": "clojure", ".lisp": "lisp", ".el": "lisp", ".ini": "ini",
	".erl": "erlang", ".tex": "latex", ".vb": "vb", ".vim": "vim", ".bat": "bat", ".cmd": "bat",
	".html": "html", ".htm": "html", ".xml": "xml", ".svg": "xml", ".md": "markdown",
	".vue": "vue", ".svelte": "svelte", ".json": "json", ".txt": "plaintext",
}

var fileNames = map[string]string{
	"makefile":      "makefile",
	"gnumakefile":   "makefile",
	"justfile":      "makefile",
	"dockerfile":    "dockerfile",
	"containerfile": "dockerfile",
	"gemfile":       "ruby",
	"rakefile":      "ruby",
}

var (
	byID  map[string]Descriptor
	cache sync.Map // normalized query -> cacheEntry
)

func init() {
	byID = make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}
}

// Lookup returns the descriptor for a language ID. Matching is
// case-insensitive and accepts common aliases. The boolean is false for
// unknown IDs, in which case Plaintext is returned.
func Lookup(id string) (Descriptor, bool) {
	key := normalize(id)
	if v, ok := cache.Load(key); ok {
		e := v.(cacheEntry)
		return e.d, e.ok
	}
	d, ok := resolve(key)
	cache.Store(key, cacheEntry{d: d, ok: ok})
	return d, ok
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

type cacheEntry struct {
	d  Descriptor
	ok bool
}

func resolve(key string) (Descriptor, bool) {
	if d, ok := byID[key]; ok {
		return d, true
	}
	if canon, ok := aliases[key]; ok {
		return byID[canon], true
	}
	return Plaintext, false
}

// Get is Lookup without the found flag.
func Get(id string) Descriptor {
	d, _ := Lookup(id)
	return d
}

// IDForPath infers a language ID from a file path by extension or well-known
// file name. It returns "" when nothing matches.
func IDForPath(path string) string {
	base := filepath.Base(path)
	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if id, ok := extensions[ext]; ok {
			return id
		}
	}
	name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	if id, ok := fileNames[name]; ok {
		if _, known := byID[id]; known {
			return id
		}
	}
	return ""
}

// ForPath returns the descriptor for a file path, or Plaintext.
func ForPath(path string) Descriptor {
	id := IDForPath(path)
	if id == "" {
		return Plaintext
	}
	return Get(id)
}

// IDs returns every known language ID, sorted.
func IDs() []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
