package recorder

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepActionLabel(t *testing.T) {
	pos := image.Pt(12, 34)
	assert.Equal(t, "Left Click at (12, 34)", Step{Action: LeftClick, Position: &pos}.ActionLabel())
	assert.Equal(t, "Keyboard Input", Step{Action: KeyboardInput}.ActionLabel())
}

func TestStepJSONOmitsScreenshot(t *testing.T) {
	pos := image.Pt(1, 2)
	data, err := json.Marshal(Step{
		Sequence:    3,
		Action:      MiddleClick,
		WindowTitle: "Files",
		Position:    &pos,
		Screenshot:  []byte("png"),
		Details:     "Middle Click at (1, 2)",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Middle Click", decoded["action"])
	assert.Equal(t, float64(3), decoded["sequence"])
	assert.NotContains(t, decoded, "screenshot")
	assert.NotContains(t, decoded, "Screenshot")
}

func TestStateAndKindNames(t *testing.T) {
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "Right Click", RightClick.String())
	assert.Equal(t, "Typed 0 character(s)", keyboardDetails(0))
	assert.Equal(t, "Left Click at (1, 2) on [xterm]", clickDetails(LeftClick, 1, 2, "[xterm]"))
}

func TestStateAndKindDecodeTheirNames(t *testing.T) {
	var got struct {
		State  State      `json:"state"`
		Action ActionKind `json:"action"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"state":"paused","action":"Middle Click"}`), &got))
	assert.Equal(t, Paused, got.State)
	assert.Equal(t, MiddleClick, got.Action)

	for st := Idle; st <= Stopped; st++ {
		text, err := st.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, st, back)
	}

	var st State
	assert.Error(t, st.UnmarshalText([]byte("unknown")))
	var k ActionKind
	assert.Error(t, k.UnmarshalText([]byte("Double Click")))
}
