// Package tui provides the terminal dashboard for supervised runs.
//
// The dashboard is read-only: it displays the run's chunks, their current
// states, the agents working on them, and a rolling activity log. Users can
// only quit with 'q' or Ctrl+C; quitting before the run finishes asks the
// engine to cancel it.
//
// Usage:
//
//	program, _ := tui.NewDashboardProgram(runID)
//	go program.Run()
//
//	// Send state updates
//	program.Send(tui.RunUpdateMsg{Snapshot: snap})
//
//	// Send log lines
//	program.Send(tui.RunLogMsg{
//	    Timestamp: time.Now(),
//	    Message:   "chunk a1b2c3d4 dispatched to agent-1",
//	})
//
//	// Signal completion
//	program.Send(tui.RunDoneMsg{Verdict: snap.Verdict})
package tui
