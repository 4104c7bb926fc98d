// Package loader loads page modules lazily and exactly once.
//
// A module is the set of named exports of one page file, produced by an
// Importer. Loads are memoized per (page, kind) and, underneath, per
// file, so a _default file shared by many pages is imported once.
// Concurrent callers of the same key wait on the same in-flight load.
// Failed loads are memoized as well.
//
// Exports are duck-typed at the boundary: Load checks that view modules
// export a page, and Hooks converts server and client exports into typed
// hook fields.
package loader
