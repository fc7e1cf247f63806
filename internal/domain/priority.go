package domain

// Priority ranks how urgently a byte range should be fetched from the swarm.
type Priority int

const (
	PriorityNone      Priority = -1
	PriorityNormal    Priority = 0
	PriorityReadahead Priority = 1 // Within the readahead window.
	PriorityNext      Priority = 2 // Very next bytes to be consumed.
	PriorityNow       Priority = 3 // Immediate need at the read cursor.
)
