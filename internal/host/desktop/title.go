package desktop

import (
	"strings"

	"github.com/chaz8081/gostt-code/internal/lang"
)

// window is what can be learned from a window title such as
// "● main.go - myproject - Visual Studio Code".
type window struct {
	App       string
	File      string
	Workspace string
}

var titleSeparators = []string{" — ", " - "}

// nonFileTabs are editor tabs that are not documents.
var nonFileTabs = map[string]bool{
	"welcome":            true,
	"settings":           true,
	"keyboard shortcuts": true,
	"release notes":      true,
	"get started":        true,
}

func parseTitle(title string) window {
	title = strings.TrimSpace(title)
	title = strings.TrimPrefix(title, "●")
	title = strings.TrimSpace(strings.TrimPrefix(title, "*"))
	title = strings.TrimPrefix(title, "[Extension Development Host] ")

	var parts []string
	for _, sep := range titleSeparators {
		if strings.Contains(title, sep) {
			parts = strings.Split(title, sep)
			break
		}
	}
	if parts == nil {
		return window{App: title}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	w := window{App: parts[len(parts)-1]}
	rest := parts[:len(parts)-1]
	switch len(rest) {
	case 0:
	case 1:
		if looksLikeFile(rest[0]) {
			w.File = rest[0]
		} else {
			w.Workspace = rest[0]
		}
	default:
		if looksLikeFile(rest[0]) {
			w.File = rest[0]
		}
		w.Workspace = rest[len(rest)-1]
	}
	w.Workspace = strings.TrimSuffix(w.Workspace, " (Workspace)")
	return w
}

func looksLikeFile(s string) bool {
	if nonFileTabs[strings.ToLower(s)] || strings.HasPrefix(s, "Extension: ") {
		return false
	}
	return lang.IDForPath(s) != "" || strings.Contains(s, ".")
}
