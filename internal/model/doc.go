// Package model defines the core data structures shared by the resolver,
// the fetcher, the scheduler and the presentation layers.
//
// # Items
//
// ItemDescriptor is the unit of work. The resolver turns every source
// reference into a Resolution holding zero or more descriptors:
//
//	res, _ := resolver.Resolve(ctx, "https://www.youtube.com/playlist?list=PL...")
//	for i, item := range res.Items {
//	    fmt.Println(item.DisplayTitle(i))
//	}
//
// # Outcomes
//
// Every descriptor handed to the scheduler ends with exactly one Outcome,
// either a success carrying the artifact path or a failure carrying the last
// error message. BatchResult groups them:
//
//	result.Successes          // completion order
//	result.Failures           // completion order
//	result.ResolutionFailures // input order
//
// # Progress
//
// ProgressEvent is emitted while an item is being fetched. Consumers
// implement ProgressSink, or wrap a function with ProgressFunc.
package model
