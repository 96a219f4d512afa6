// Package monitor implements the hfwatch terminal dashboard.
//
// The dashboard lists discovered endpoints, attaches to the selected one,
// and draws its heightfield as it is polled.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: candidate list, selection, attach indicator, last snapshot
//   - Update: keystrokes plus messages from the Controller
//   - View: renders the list, the heightfield, and a status line
//
// # Key Components
//
//	Controller  - Owns the Directory, the attach Manager and the active Refresher
//	Model       - The Bubble Tea model
//	LineWriter  - A plain-text listener for non-interactive output
//
// # Message Flow
//
// Background work never touches the Model directly. The Controller is the
// attach owner and registers a listener on each Refresher; both forward
// what they see to the program with Send:
//
//  1. The Directory's ticker refreshes candidates -> candidatesMsg
//  2. enter calls Controller.Attach -> busyMsg, then attachedMsg or attachFailedMsg
//  3. The Refresher loop fetches -> snapshotMsg per snapshot, then disconnectedMsg
//
// Each Refresher gets a generation number. Messages from an older
// generation are dropped, so a late snapshot from a replaced endpoint never
// overwrites the current one.
package monitor
