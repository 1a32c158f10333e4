package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardAcceptsPopulatedReferences(t *testing.T) {
	raw := `{"_id":"c1","list":{"_id":"l1","title":"Todo"},"board":"b1","title":"T","position":2,"dueDate":"2026-10-20T00:00:00Z"}`
	var c Card
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "l1", c.ListID)
	assert.Equal(t, "b1", c.BoardID)
	assert.Equal(t, 2, c.Position)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, []string{}, c.Labels)
}

func TestListAcceptsPlainID(t *testing.T) {
	var l List
	require.NoError(t, json.Unmarshal([]byte(`{"id":"l9","board":null,"title":"Done","position":4}`), &l))
	assert.Equal(t, "l9", l.ID)
	assert.Empty(t, l.BoardID)
	assert.Equal(t, 4, l.Position)
}

func TestBoardOwnerIsMember(t *testing.T) {
	raw := `{"_id":"b1","title":"B","owner":{"_id":"u1","name":"Ada"},"members":[{"user":{"_id":"u2","name":"Bob"},"role":"member"}]}`
	var b Board
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	require.Len(t, b.Members, 2)
	assert.Equal(t, "u1", b.Members[0].User.ID)
	assert.Equal(t, RoleOwner, b.Members[0].Role)

	raw = `{"_id":"b1","owner":{"_id":"u1"},"members":[{"user":{"_id":"u1"},"role":"owner"}]}`
	b = Board{}
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Len(t, b.Members, 1)
}

func TestDragNoOp(t *testing.T) {
	assert.True(t, DragEvent{Source: Location{ContainerID: "l1"}}.NoOp())
	assert.True(t, DragEvent{
		Source:      Location{ContainerID: "l1", Index: 2},
		Destination: &Location{ContainerID: "l1", Index: 2},
	}.NoOp())
	assert.False(t, DragEvent{
		Source:      Location{ContainerID: "l1", Index: 2},
		Destination: &Location{ContainerID: "l2", Index: 2},
	}.NoOp())
}

func TestUserAcceptsBareID(t *testing.T) {
	var b Board
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"b1","owner":"u1","members":[]}`), &b))
	assert.Equal(t, "u1", b.Owner.ID)
	require.Len(t, b.Members, 1)
	assert.Equal(t, RoleOwner, b.Members[0].Role)
}
