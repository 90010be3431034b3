// Package schedule turns a conflict graph into an execution plan.
//
// Batches layers the graph with Kahn's algorithm: each batch holds every
// transaction whose predecessors have all been emitted. Groups splits one
// batch into conflict-free groups with greedy first-fit packing. First-fit is
// not guaranteed to find the minimum group count.
//
// PriorityBatches is an alternative layering that orders each round by fee
// (descending), then timestamp (ascending), then ID.
//
// Nodes that never reach indegree 0 because of a cycle are returned in
// Plan.Unscheduled rather than dropped.
package schedule
