// Package mirror implements the sync engine that mirrors a remote folder
// tree onto a target.
//
// A run has four stages:
//
//  1. Traverser walks the remote tree depth first with an explicit stack,
//     creating every directory on the target and collecting one Task per
//     file. Each folder id is expanded at most once per run.
//  2. SortTasks orders the tasks deepest first, then by remote id.
//  3. SkipPolicy drops tasks whose target file already has the remote size.
//     Files with an unknown remote size are always downloaded.
//  4. Scheduler fetches the remaining tasks into a private staging directory
//     with a fixed number of workers and publishes each completed file with
//     an atomic rename. A failed task never stops the others.
//
// Listing failures and directory creation failures during traversal abort
// the run. Re-running after an interruption only downloads what is missing.
package mirror
