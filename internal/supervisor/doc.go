// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package supervisor provides process supervision for VIXWatch using suture v4.

The tree separates the background schedule from the HTTP surface:

	RootSupervisor ("vixwatch")
	├── SchedulingSupervisor ("scheduling-layer")
	│   ├── Monitor ("monitor")
	│   ├── Prober ("liveness-prober")
	│   └── Pool ("chart-render-pool")
	└── APISupervisor ("api-layer")
	    └── HTTPServerService ("http-server")

A service that returns an error or panics is restarted with suture's backoff.
A service may return suture.ErrDoNotRestart to stay down, as the render pool
does once it has been closed.

Supervisor events are logged through sutureslog into the same zerolog stream
as the rest of the process:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddSchedulingService(mon)
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
