// Package scrapeflow coordinates scraping jobs against a declaratively
// defined master plan. An agent owns the plan (ordered synchronization groups
// of task specs) and a registry of task definitions; a job filters the plan
// down to the identifiers a caller enqueued, expands each group into an
// execution block of runnable task instances and advances one block at a
// time, driven by lifecycle events.
//
// End-users typically interact through the Runtime facade:
//
//	rt, _ := scrapeflow.New(myAgent)
//	_ = rt.Start(ctx)
//	j, _ := rt.NewJob(ctx, "catalogue-2024-05")
//	_ = j.Enqueue("listPages").Enqueue("productDetails").
//		Params(map[string]interface{}{"maxPages": 3}).
//		Run(ctx)
//	_ = rt.WaitForJob(ctx, j.UID(), time.Minute)
//
// See the individual sub-packages for the building blocks.
package scrapeflow
