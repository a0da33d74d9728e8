package keybinds

// NewDefaultRegistry returns the built-in bindings
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(ContextGlobal, "ctrl+c", ActionQuitForce)
	r.Register(ContextGlobal, "ctrl+l", ActionOpenAuth)
	r.Register(ContextGlobal, "ctrl+o", ActionLogout)
	r.Register(ContextGlobal, "ctrl+h", ActionToggleHistory)
	r.Register(ContextGlobal, "ctrl+y", ActionCopyResult)
	r.Register(ContextGlobal, "f1", ActionHelp)

	r.Register(ContextForm, "enter", ActionSubmit)
	r.Register(ContextForm, "esc", ActionCancelRequest)
	r.Register(ContextForm, "ctrl+q", ActionQuit)
	r.Register(ContextForm, "tab", ActionNextField)
	r.Register(ContextForm, "shift+tab", ActionPrevField)
	r.Register(ContextForm, "ctrl+x", ActionClearFile)
	r.RegisterMultiple(ContextForm, []string{"pgup", "ctrl+u"}, ActionScrollUp)
	r.RegisterMultiple(ContextForm, []string{"pgdown", "ctrl+d"}, ActionScrollDown)

	r.Register(ContextAuth, "esc", ActionCloseModal)
	r.Register(ContextAuth, "enter", ActionConfirm)
	r.Register(ContextAuth, "ctrl+r", ActionSwitchAuthMode)
	r.Register(ContextAuth, "tab", ActionNextField)
	r.Register(ContextAuth, "shift+tab", ActionPrevField)

	r.RegisterMultiple(ContextHistory, []string{"esc", "ctrl+h"}, ActionCloseModal)
	r.RegisterMultiple(ContextHistory, []string{"up", "ctrl+p"}, ActionNavigateUp)
	r.RegisterMultiple(ContextHistory, []string{"down", "ctrl+n"}, ActionNavigateDown)
	r.Register(ContextHistory, "ctrl+r", ActionRefreshHistory)
	r.Register(ContextHistory, "tab", ActionSwitchSource)
	r.Register(ContextHistory, "enter", ActionLoadEntry)

	r.RegisterMultiple(ContextAlert, []string{"enter", "esc"}, ActionCloseModal)

	return r
}
