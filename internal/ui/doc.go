// Package ui provides the small pieces of styled output shared by the
// non-interactive hfwatch commands: status symbols, a color palette, and a
// single-line activity indicator.
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - In-progress indicators
//
// The lipgloss default renderer decides whether color is emitted; the CLI
// sets its profile from --color.
package ui
