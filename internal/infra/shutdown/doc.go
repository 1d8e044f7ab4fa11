// Package shutdown coordinates graceful process termination.
//
// Components register named hooks; on SIGINT, SIGTERM, context
// cancellation, or an explicit Trigger the hooks run in reverse
// registration order under one shared timeout.
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
