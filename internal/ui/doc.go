// Package ui provides the Bubble Tea terminal interface for songbook.
//
// # Architecture Overview
//
// Model owns an editor.Controller and is its only caller once the program
// runs. Everything that blocks happens in tea.Cmds and comes back as
// messages:
//
//   - eventMsg: one subscription event from Controller.Receive, applied with
//     HandleEvent. Another receive is scheduled while the subscription is open.
//   - writeDoneMsg: the Completion of an editor.Op, applied with Complete.
//   - linkOpenedMsg / copiedMsg: results of the link opener and clipboard.
//
// # Package Structure
//
//   - app.go: Model, key routing, Run
//   - list.go: numbered song list, cursor kept by key, titled boxes
//   - detail.go: lyrics viewport and the create/edit form
//   - header.go: status bar (health, count, last sync, mode, errors) and command hints
//   - modal.go: delete confirmation, which is also the editor.Confirmer
//   - commands.go: tea messages and commands
//   - theme.go, style_helpers.go: palettes and background-safe rendering
//
// # Focus
//
// Keys go to the list, the search input or the form. The form has focus
// exactly while the editor is creating or editing; syncFocus restores this
// after snapshots and write completions.
//
// # Key Bindings
//
//	enter   open song          a       add song
//	e       edit song          d       delete song (asks first)
//	o       open YouTube link  y       copy lyrics
//	/       search titles      esc     close / clear search
//	ctrl+s  save form          tab     next field
//	r       reconnect          T       cycle theme
//	?       help               q       quit
package ui
