package models

import "time"

// AgentInfo describes a worker as reported by the worker registry.
// The engine holds these only as read-through snapshots; the registry
// owns the authoritative record.
type AgentInfo struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Tags lists the capability tags the agent has declared.
	Tags []string `json:"tags,omitempty"`
	// Capacity is the maximum number of chunks the agent may run at once.
	Capacity int `json:"capacity"`
	// CurrentLoad is the number of chunks the agent was running when the
	// registry snapshot was taken.
	CurrentLoad int `json:"current_load"`
}

// IdleRatio returns the fraction of the agent's capacity that is free.
// Returns 0 for agents with no capacity.
func (a AgentInfo) IdleRatio() float64 {
	if a.Capacity <= 0 {
		return 0
	}
	idle := a.Capacity - a.CurrentLoad
	if idle < 0 {
		idle = 0
	}
	return float64(idle) / float64(a.Capacity)
}

// HasTag returns true if the agent declares the given capability tag.
func (a AgentInfo) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Assignment binds one chunk to one agent for one attempt.
type Assignment struct {
	// ChunkID is the chunk being executed.
	ChunkID string `json:"chunk_id"`
	// AgentID is the agent executing the chunk.
	AgentID string `json:"agent_id"`
	// Attempt is the 1-indexed attempt number for the chunk.
	Attempt int `json:"attempt"`
	// StartedAt is when the assignment was dispatched.
	StartedAt time.Time `json:"started_at"`
	// Deadline is when the assignment times out.
	Deadline time.Time `json:"deadline"`
}
