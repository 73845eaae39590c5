package npc

import (
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// Instance is the runtime combat state of one monster for the lifetime of an
// encounter. It is a value: commands copy, modify and store it into a new
// simulation snapshot rather than mutating a shared record.
type Instance struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	CurrentHP  int    `json:"current_hp"`
	MaxHP      int    `json:"max_hp"`
	// Conditions is shared structurally between snapshots; replace, never edit in place.
	Conditions condition.Set `json:"conditions,omitempty"`

	SquadID  string `json:"squad_id,omitempty"`
	LeaderID string `json:"leader_id,omitempty"`
	// SquadTargetID is the target the squad leader assigned; only meaningful on the leader.
	SquadTargetID  string `json:"squad_target_id,omitempty"`
	LastAttackerID string `json:"last_attacker_id,omitempty"`
	// Strategy is read-only once assigned.
	Strategy *threat.Strategy `json:"strategy,omitempty"`
}

// NewInstance creates runtime state for tmpl at full health.
//
// Precondition: id must be non-empty; tmpl must be non-nil.
// Postcondition: CurrentHP equals tmpl.MaxHP.
func NewInstance(id string, tmpl *Template) Instance {
	if id == "" || tmpl == nil {
		panic("npc.NewInstance: precondition violated: id and tmpl required")
	}
	return Instance{
		ID:         id,
		TemplateID: tmpl.ID,
		Name:       tmpl.Name,
		CurrentHP:  tmpl.MaxHP,
		MaxHP:      tmpl.MaxHP,
	}
}

// IsDead reports whether the instance has zero hit points.
func (i Instance) IsDead() bool {
	return i.CurrentHP <= 0
}

// IsLeader reports whether the instance leads its squad.
func (i Instance) IsLeader() bool {
	return i.SquadID != "" && (i.LeaderID == "" || i.LeaderID == i.ID)
}

// HPPercent returns current hit points as a percentage of maximum.
func (i Instance) HPPercent() float64 {
	if i.MaxHP <= 0 {
		return 0
	}
	return 100 * float64(i.CurrentHP) / float64(i.MaxHP)
}

// HealthDescription returns a visible health state string for log lines.
//
// Postcondition: Returns a non-empty string.
func (i Instance) HealthDescription() string {
	if i.CurrentHP <= 0 {
		return "defeated"
	}
	pct := float64(i.CurrentHP) / float64(i.MaxHP)
	switch {
	case pct >= 1.0:
		return "unharmed"
	case pct >= 0.85:
		return "barely scratched"
	case pct >= 0.60:
		return "lightly wounded"
	case pct >= 0.40:
		return "moderately wounded"
	case pct >= 0.20:
		return "heavily wounded"
	default:
		return "critically wounded"
	}
}
