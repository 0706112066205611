// Package store holds the three JSON-file repositories the tool works
// from: the instruction queue, the provisioned-device database, and the
// control-device profiles.
//
// All three share the same persistence discipline: load the whole file,
// mutate in memory, write the whole file back atomically (temp file plus
// rename). The queue is rewritten at every provisioning checkpoint so a
// crash loses at most the single in-flight instruction.
//
// Field names in the files are part of the tool's external contract;
// other tooling reads them.
package store
