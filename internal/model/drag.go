package model

// ItemType tells which kind of element a drag gesture moved.
type ItemType string

const (
	ItemList ItemType = "list"
	ItemCard ItemType = "card"
)

// Location is one end of a drag gesture: a container and an index in it.
// For cards the container is a list id; for lists it is the board id.
type Location struct {
	ContainerID string
	Index       int
}

// DragEvent is reported by the UI layer when a drag gesture ends.
// Destination is nil when the item was dropped outside any container.
type DragEvent struct {
	Source      Location
	Destination *Location
	ItemID      string
	Type        ItemType
}

// NoOp reports whether the gesture changes nothing.
func (e DragEvent) NoOp() bool {
	if e.Destination == nil {
		return true
	}
	return e.Source.ContainerID == e.Destination.ContainerID && e.Source.Index == e.Destination.Index
}
