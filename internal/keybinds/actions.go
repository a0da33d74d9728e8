// Package keybinds maps keys to TUI actions per context. Users override
// the defaults in ~/.genepredict/keybinds.json.
package keybinds

// Action is something a key can trigger
type Action string

// Context is the part of the UI that has focus
type Context string

const (
	ContextGlobal  Context = "global"  // everywhere unless shadowed
	ContextForm    Context = "form"    // the prediction form
	ContextAuth    Context = "auth"    // login/register modal
	ContextHistory Context = "history" // history panel
	ContextAlert   Context = "alert"   // blocking error alert
)

// Contexts lists every context a config file may name
var Contexts = []Context{ContextGlobal, ContextForm, ContextAuth, ContextHistory, ContextAlert}

const (
	ActionQuit      Action = "quit"
	ActionQuitForce Action = "quit_force"
	ActionHelp      Action = "help"

	// form
	ActionSubmit        Action = "submit"
	ActionCancelRequest Action = "cancel_request"
	ActionNextField     Action = "next_field"
	ActionPrevField     Action = "prev_field"
	ActionClearFile     Action = "clear_file"
	ActionOpenAuth      Action = "open_auth"
	ActionLogout        Action = "logout"
	ActionToggleHistory Action = "toggle_history"
	ActionCopyResult    Action = "copy_result"
	ActionScrollUp      Action = "scroll_up"
	ActionScrollDown    Action = "scroll_down"

	// modals
	ActionCloseModal     Action = "close_modal"
	ActionConfirm        Action = "confirm"
	ActionSwitchAuthMode Action = "switch_auth_mode"
	ActionNavigateUp     Action = "navigate_up"
	ActionNavigateDown   Action = "navigate_down"
	ActionFocusFilter    Action = "focus_filter"
	ActionRefreshHistory Action = "refresh_history"
	ActionSwitchSource   Action = "switch_history_source"
	ActionLoadEntry      Action = "load_entry"
)

// knownActions backs ValidateAction
var knownActions = map[Action]bool{
	ActionQuit: true, ActionQuitForce: true, ActionHelp: true,
	ActionSubmit: true, ActionCancelRequest: true, ActionNextField: true, ActionPrevField: true,
	ActionClearFile: true, ActionOpenAuth: true, ActionLogout: true, ActionToggleHistory: true,
	ActionCopyResult: true, ActionScrollUp: true, ActionScrollDown: true,
	ActionCloseModal: true, ActionConfirm: true, ActionSwitchAuthMode: true,
	ActionNavigateUp: true, ActionNavigateDown: true, ActionFocusFilter: true,
	ActionRefreshHistory: true, ActionSwitchSource: true, ActionLoadEntry: true,
}
