package battlefield

// Kind distinguishes the participant behind a token.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
	KindObject Kind = "object"
)

// Team affiliation values used by the bundled content.
const (
	TeamPlayers  = "players"
	TeamMonsters = "monsters"
)

// Token is a positioned participant on the battlefield.
//
// CombatantID links to the NPC runtime record (KindNPC) or to the player
// record owned by the stats layer (KindPlayer). Objects leave it empty.
type Token struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Team        string   `json:"team" yaml:"team"`
	Position    Position `json:"position" yaml:"position"`
	CombatantID string   `json:"combatant_id,omitempty" yaml:"combatant_id,omitempty"`
}

// IsPlayer reports whether the token is player-controlled.
func (t Token) IsPlayer() bool { return t.Kind == KindPlayer }

// Hostile reports whether a and b are on opposing teams. Objects are never hostile.
func Hostile(a, b Token) bool {
	if a.Kind == KindObject || b.Kind == KindObject {
		return false
	}
	return a.Team != b.Team
}
