package content_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/bt"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
	"github.com/cory-johannsen/tactics/internal/testutil"
)

const ratYAML = `
id: rat
name: Giant Rat
max_hp: 7
ac: 12
speed: 6
archetype: brute
abilities:
  - id: bite
    name: Bite
    kind: melee
    attack_bonus: 4
    damage:
      - {dice: 1d4, bonus: 2, type: piercing}
`

const bruteYAML = `
archetype:
  id: brute
  tree:
    type: sequence
    children:
      - type: find_visible_enemies
      - type: find_closest_enemy
      - type: attack_target
`

type layout struct {
	monsters, archetypes, conditions, blueprints map[string]string
}

func writeLayout(t *testing.T, l layout) config.ContentConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.ContentConfig{
		Monsters:   filepath.Join(root, "monsters"),
		Archetypes: filepath.Join(root, "archetypes"),
		Conditions: filepath.Join(root, "conditions"),
		Blueprints: filepath.Join(root, "blueprints"),
		Scripts:    filepath.Join(root, "scripts"),
	}
	for dir, files := range map[string]map[string]string{
		cfg.Monsters:   l.monsters,
		cfg.Archetypes: l.archetypes,
		cfg.Conditions: l.conditions,
		cfg.Blueprints: l.blueprints,
	} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for name, body := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		}
	}
	return cfg
}

func TestLoad_ReadsEveryKind(t *testing.T) {
	cfg := writeLayout(t, layout{
		monsters:   map[string]string{"rat.yaml": ratYAML, "notes.txt": "ignored"},
		archetypes: map[string]string{"brute.yaml": bruteYAML},
		conditions: map[string]string{"slowed.yaml": "id: slowed\nname: Slowed\nduration_type: rounds\nspeed_penalty: 2\n"},
		blueprints: map[string]string{"crate.yaml": "id: crate\nname: Crate\nintegrity: 5\n"},
	})

	cat, err := content.Load(context.Background(), cfg)
	require.NoError(t, err)

	rat, ok := cat.Monster("rat")
	require.True(t, ok)
	assert.Equal(t, "Giant Rat", rat.Name)
	_, ok = cat.Monster("notes")
	assert.False(t, ok)

	crate, ok := cat.Blueprint("crate")
	require.True(t, ok)
	assert.Equal(t, 5, crate.Integrity)

	_, ok = cat.Conditions.Get("slowed")
	assert.True(t, ok)
	_, ok = cat.Conditions.Get(condition.Prone)
	assert.True(t, ok, "built-ins survive a directory load")

	require.Len(t, cat.Archetypes, 1)
	assert.Equal(t, []string{"rat"}, cat.MonsterIDs())
	assert.Empty(t, cat.Unresolved())
}

func TestLoad_PropagatesFailures(t *testing.T) {
	cases := map[string]layout{
		"bad monster":   {monsters: map[string]string{"x.yaml": "id: x\nname: X\nmax_hp: 0\nac: 10\n"}},
		"bad condition": {conditions: map[string]string{"x.yaml": "id: x\nduration_type: forever\n"}},
		"bad blueprint": {blueprints: map[string]string{"x.yaml": "name: nameless\n"}},
		"bad archetype": {archetypes: map[string]string{"x.yaml": "tree: {}\n"}},
		"duplicate monster": {monsters: map[string]string{
			"a.yaml": ratYAML,
			"b.yaml": ratYAML,
		}},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := content.Load(context.Background(), writeLayout(t, l))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "content.Load")
		})
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	cfg := writeLayout(t, layout{})
	cfg.Blueprints = filepath.Join(t.TempDir(), "nope")
	_, err := content.Load(context.Background(), cfg)
	require.Error(t, err)
}

func TestUnresolved_ListsMonstersWithoutArchetype(t *testing.T) {
	cat := content.New([]*npc.Template{
		{ID: "b", Archetype: "ghost"},
		{ID: "a", Archetype: "ghost"},
		{ID: "c", Archetype: "brute"},
		{ID: "d"},
	}, nil, []*ai.ArchetypeDef{{ID: "brute"}}, nil)

	assert.Equal(t, []string{"a", "b"}, cat.Unresolved())
	assert.NotNil(t, cat.Conditions, "New falls back to built-in conditions")
}

func TestRepositoryContent_LoadsAndBuilds(t *testing.T) {
	root := testutil.RepoRoot(t)
	cfg := config.ContentConfig{
		Monsters:   filepath.Join(root, "content", "monsters"),
		Archetypes: filepath.Join(root, "content", "archetypes"),
		Conditions: filepath.Join(root, "content", "conditions"),
		Blueprints: filepath.Join(root, "content", "blueprints"),
	}
	cat, err := content.Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, cat.MonsterIDs())
	assert.Empty(t, cat.Unresolved(), "every shipped monster names a shipped archetype")

	trees := ai.NewRegistry()
	built := trees.Load(cat.Archetypes, tactics.NewRegistry(bt.Instrumentation{}), zaptest.NewLogger(t))
	assert.Equal(t, len(cat.Archetypes), built)

	for _, id := range cat.MonsterIDs() {
		m, _ := cat.Monster(id)
		for _, a := range m.Abilities {
			if a.Inflict != nil {
				_, ok := cat.Conditions.Get(a.Inflict.Condition)
				assert.True(t, ok, "%s/%s inflicts unknown condition %q", id, a.ID, a.Inflict.Condition)
			}
		}
	}
}
