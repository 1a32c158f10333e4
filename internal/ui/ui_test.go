package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTheme(t *testing.T) {
	t.Cleanup(func() { _ = SetTheme("classic") })

	require.NoError(t, SetTheme("NEON"))
	assert.Equal(t, "neon", Current().Name)

	err := SetTheme("sepia")
	require.Error(t, err)
	assert.Equal(t, "neon", Current().Name)
}

func TestMeter(t *testing.T) {
	t.Cleanup(func() { _ = SetTheme("classic") })
	require.NoError(t, SetTheme("mono"))

	assert.Equal(t, "#####.....  50%", Meter(0.5, 10))
	assert.Equal(t, "########## 100%", Meter(3, 10))
	assert.Equal(t, "..........   0%", Meter(-1, 10))
}

func TestRenderPanelAlignsColoredLines(t *testing.T) {
	t.Cleanup(func() { _ = SetTheme("classic") })
	require.NoError(t, SetTheme("mono"))

	out := RenderPanel([]string{"\033[32mok\033[0m", "longer"})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "+--------+", lines[0])
	assert.Equal(t, "| longer |", lines[2])
	assert.True(t, strings.HasSuffix(lines[1], "     |"))
}

func TestMessagesGoToWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() { Stdout, Stderr = oldOut, oldErr })

	OK("saved")
	Fail("nope")
	assert.Contains(t, out.String(), "saved")
	assert.Contains(t, errOut.String(), "nope")
	assert.NotContains(t, out.String(), "nope")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}
