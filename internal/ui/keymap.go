package ui

// Key bindings for the history browser.
const (
	KeyQuit   = "q"
	KeyEsc    = "esc"
	KeyCtrlC  = "ctrl+c"
	KeyUp     = "up"
	KeyDown   = "down"
	KeyJ      = "j"
	KeyK      = "k"
	KeyEnter  = "enter"
	KeyReload = "r"
	KeyHome   = "g"
	KeyEnd    = "G"
)
