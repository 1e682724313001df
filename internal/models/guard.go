package models

// GuardState is the durable marker value for a trigger identifier.
type GuardState string

const (
	GuardAbsent     GuardState = ""
	GuardProcessing GuardState = "processing"
	GuardDone       GuardState = "done"
)
