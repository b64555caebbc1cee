// Package ui provides the line-oriented terminal output used outside the
// full-screen dashboard: plain metric lines, status indicators, a request
// spinner and the branded header.
//
// # Plain output
//
// PlainOutput implements session.Sink and prints one line per event:
//
//	● live
//	epoch 1  batch 12  loss 0.7312  acc 62.5%  ▇▆▅▄▃
//	! Connection lost. Reconnecting in 1s... (1/5)
//	◐ reconnecting (1/5) in 1s
//
// # Colors
//
// Colors are lipgloss hex colors. Use DisableColors() for monochrome output
// (the --no-color flag).
//
// # Spinner
//
//	s := ui.NewSpinner("Starting training")
//	s.Start()
//	resp, err := client.Start(ctx, epochs)
//	s.Finish(err)
package ui
