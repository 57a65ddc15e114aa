// Package compiler turns a YAML flow document into a compiled
// flowengine.Registry: the edge table, the per-flow propagation
// switches, and the failure-tree fallback rules all live in one file
// per flow, the way the teacher's internal/jobs/pipeline/*/def.go
// files declare one Go-literal stage list per pipeline.
package compiler
