package desktop

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Driver is the OS automation the desktop host needs.
type Driver interface {
	// ActiveWindow returns the focused window's title and owning process.
	ActiveWindow() (title, process string)
	Type(text string)
	KeyTap(key string, mods ...string) error
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
}

// Robotgo drives the real desktop.
type Robotgo struct{}

func (Robotgo) ActiveWindow() (string, string) {
	title := robotgo.GetTitle()
	name, err := robotgo.FindName(robotgo.GetPid())
	if err != nil {
		name = ""
	}
	return title, name
}

func (Robotgo) Type(text string) {
	robotgo.Type(text)
}

func (Robotgo) KeyTap(key string, mods ...string) error {
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("desktop: key tap %s: %w", key, err)
	}
	return nil
}

func (Robotgo) ReadClipboard() (string, error) {
	return robotgo.ReadAll()
}

func (Robotgo) WriteClipboard(text string) error {
	return robotgo.WriteAll(text)
}

// primaryMod is the platform's command modifier.
func primaryMod(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

var defaultPrimary = primaryMod(runtime.GOOS)
