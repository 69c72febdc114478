// Package viz replays a spawn trace in the terminal.
//
// [Model] is a Bubble Tea program drawing the world on a colour braille
// [Canvas], with the step counter, an energy chart and a population
// sparkline beside it.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Restart from the first record
//	+/-   - Steps per frame
//	S     - Save a PNG snapshot
//	T     - Cycle colour themes
//	?     - Show help overlay
//	Q     - Quit
package viz
