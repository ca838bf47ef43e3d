// Package viz renders portal frames.
//
// A [Scene] projects the particle buffers, the core glows and a starfield
// through a [ViewCamera] into a [Frame] of window-local points. Backends
// draw frames:
//
//   - [Canvas]: colored braille grid for terminals
//   - [Model]: Bubble Tea viewer where one terminal is one window
//   - [Picker]: preset menu
//
// # Key Bindings
//
//	Arrows/HJKL - Move the window rectangle
//	M           - Toggle reduced motion
//	T           - Cycle themes
//	?           - Show key hints
//	Q           - Quit
package viz
