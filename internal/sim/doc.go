// Package sim drives the particle field along the shared step timeline.
//
// A Clock converts wall time into the number of fixed steps owed since the
// shared epoch, so a window that joins late replays the same steps as one
// that has been running all along. Layout converts the live window set into
// core anchors in world space.
package sim
