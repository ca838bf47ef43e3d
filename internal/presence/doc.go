// Package presence tracks which windows of the portal are alive and where
// they sit on screen.
//
// Windows share a key/value [Store] and a broadcast [Bus]. Each window writes
// only its own entry (plus the shared epoch when it wins a leader election)
// and treats every other entry as read-only input:
//
//	reg, _ := presence.New(id, rect, epoch, store, bus, presence.DefaultConfig())
//	go reg.Run(ctx)
//	windows := reg.ListLiveWindows()
//	bounds := presence.ComputeBounds(windows)
//
// All failures are local and silent: malformed entries are dropped, stale
// entries are pruned and an unreadable medium degrades to "only self alive".
package presence
