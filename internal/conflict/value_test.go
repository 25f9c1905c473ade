package conflict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValuePath(t *testing.T) {
	v := Structured(map[string]Value{
		"player": Structured(map[string]Value{
			"name": Text("Alice"),
		}),
	})

	name, ok := v.Path("player.name")
	require.True(t, ok)
	require.Equal(t, "Alice", name.Text())

	_, ok = v.Path("player.level")
	require.False(t, ok)
	_, ok = v.Path("missing.name")
	require.False(t, ok)
}

func TestValueWithPathCreatesIntermediates(t *testing.T) {
	v := Structured(map[string]Value{})
	v = v.WithPath("player.level", Number(3))

	level, ok := v.Path("player.level")
	require.True(t, ok)
	require.Equal(t, float64(3), level.Number())
}

func TestValueEqual(t *testing.T) {
	a := Structured(map[string]Value{
		"buffs": Sequence(Text("haste"), Number(2)),
	})
	b := Structured(map[string]Value{
		"buffs": Sequence(Text("haste"), Number(2)),
	})
	require.True(t, a.Equal(b))

	c := Structured(map[string]Value{
		"buffs": Sequence(Text("haste"), Number(3)),
	})
	require.False(t, a.Equal(c))
}

func TestValueJSONRoundTrip(t *testing.T) {
	v := Structured(map[string]Value{
		"health": Number(72),
		"name":   Text("Alice"),
		"ready":  Flag(true),
		"buffs":  Sequence(Text("haste")),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, v.Equal(back))
}

func TestValueClone(t *testing.T) {
	v := Structured(map[string]Value{"health": Number(50)})
	clone := v.Clone()
	clone = clone.WithPath("health", Number(10))

	orig, _ := v.Path("health")
	require.Equal(t, float64(50), orig.Number())
	mutated, _ := clone.Path("health")
	require.Equal(t, float64(10), mutated.Number())
}
