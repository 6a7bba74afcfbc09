// Package model defines the declarative master plan (ordered synchronization
// groups of task specs) together with the task definition and task instance
// contracts shared by agents and jobs.
package model
