// Package viz provides a terminal live view of a feed run.
//
// [Model] is a Bubble Tea model that steps a runner and shows the recipe's
// stage table, progress through the active stage towards its stop condition,
// and scale and pump history charts.
//
// # Key Bindings
//
//	Space - Pause/Resume feeding
//	+/-   - Step faster/slower
//	T     - Cycle color themes
//	Q     - Stop the pump and quit
package viz
