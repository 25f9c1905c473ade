package conflict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHintForPath(t *testing.T) {
	require.Equal(t, HintDepleting, HintForPath("health"))
	require.Equal(t, HintDepleting, HintForPath("stats.maxHp"))
	require.Equal(t, HintMonotonic, HintForPath("score"))
	require.Equal(t, HintMonotonic, HintForPath("player.experience"))
	require.Equal(t, HintNone, HintForPath("position"))
}

func TestMergeNumbersDepleting(t *testing.T) {
	got := MergeValues(Number(40), Number(70), "health")
	require.Equal(t, float64(40), got.Number())

	got = MergeValues(Number(70), Number(40), "health")
	require.Equal(t, float64(40), got.Number())
}

func TestMergeNumbersMonotonic(t *testing.T) {
	got := MergeValues(Number(40), Number(70), "score")
	require.Equal(t, float64(70), got.Number())
}

func TestMergeNumbersAverage(t *testing.T) {
	got := MergeValues(Number(40), Number(60), "mana")
	require.Equal(t, float64(50), got.Number())

	// Average rounds to the nearest integer.
	got = MergeValues(Number(40), Number(61), "mana")
	require.Equal(t, float64(51), got.Number())
}

func TestMergeTexts(t *testing.T) {
	got := MergeValues(Text("longer name"), Text("short"), "title")
	require.Equal(t, "longer name", got.Text())

	got = MergeValues(Text("ab"), Text("abcd"), "title")
	require.Equal(t, "abcd", got.Text())

	// Equal length converges on the lexicographically greater side.
	got = MergeValues(Text("abc"), Text("abd"), "title")
	require.Equal(t, "abd", got.Text())
	got = MergeValues(Text("abd"), Text("abc"), "title")
	require.Equal(t, "abd", got.Text())
}

func TestMergeFlagsKeepsLocal(t *testing.T) {
	got := MergeValues(Flag(false), Flag(true), "ready")
	require.False(t, got.Flag())
}

func TestMergeSequencesUnion(t *testing.T) {
	local := Sequence(Text("a"), Text("b"))
	remote := Sequence(Text("b"), Text("c"))

	got := MergeValues(local, remote, "inventory")
	items := got.Items()
	require.Len(t, items, 3)
	require.Equal(t, "a", items[0].Text())
	require.Equal(t, "b", items[1].Text())
	require.Equal(t, "c", items[2].Text())
}

func TestMergeStructuredRecurses(t *testing.T) {
	local := Structured(map[string]Value{
		"health": Number(40),
		"score":  Number(10),
		"name":   Text("Alice"),
	})
	remote := Structured(map[string]Value{
		"health": Number(70),
		"score":  Number(25),
		"mana":   Number(5),
	})

	got := MergeValues(local, remote, "stats")
	health, _ := got.Field("health")
	require.Equal(t, float64(40), health.Number())
	score, _ := got.Field("score")
	require.Equal(t, float64(25), score.Number())
	name, _ := got.Field("name")
	require.Equal(t, "Alice", name.Text())
	mana, _ := got.Field("mana")
	require.Equal(t, float64(5), mana.Number())
}

func TestMergeStructuredNested(t *testing.T) {
	// Two levels of structure: recursion goes back through the policy
	// table at every depth.
	local := Structured(map[string]Value{
		"stats": Structured(map[string]Value{
			"health": Number(30),
			"score":  Number(5),
		}),
	})
	remote := Structured(map[string]Value{
		"stats": Structured(map[string]Value{
			"health": Number(80),
			"score":  Number(9),
		}),
	})

	got := MergeValues(local, remote, "state")
	health, ok := got.Path("stats.health")
	require.True(t, ok)
	require.Equal(t, float64(30), health.Number())
	score, ok := got.Path("stats.score")
	require.True(t, ok)
	require.Equal(t, float64(9), score.Number())
}

func TestMergeKindMismatchKeepsLocal(t *testing.T) {
	got := MergeValues(Number(3), Text("three"), "slot")
	require.Equal(t, KindNumber, got.Kind())
	require.Equal(t, float64(3), got.Number())
}

func TestMergeAbsentSides(t *testing.T) {
	got := MergeValues(Value{}, Number(7), "anything")
	require.Equal(t, float64(7), got.Number())

	got = MergeValues(Number(7), Value{}, "anything")
	require.Equal(t, float64(7), got.Number())
}
