// Package tasksys implements a minimal Make-style task engine: a registry of
// statically declared tasks, prerequisite resolution into a linear plan,
// file-timestamp staleness checks and mvdan.cc/sh as the action runtime.
// The goal is a small, portable front end for project builds where the task
// graph is compiled in instead of parsed from a build script.
package tasksys
