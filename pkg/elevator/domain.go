package elevator

// --- Domain Entities & Value Objects ---

// Direction indicates the vertical movement vector.
type Direction string

const (
	DirUp   Direction = "Up"
	DirDown Direction = "Down"
	DirNone Direction = "None"
)

// ParseDirection maps a wire value onto a Direction.
// Unknown values are accepted as-is, the controller does not validate sensor input.
func ParseDirection(s string) Direction {
	switch s {
	case "up", "Up", "UP":
		return DirUp
	case "down", "Down", "DOWN":
		return DirDown
	case "", "none", "None", "NONE":
		return DirNone
	}
	return Direction(s)
}

// PendingRequests is an insertion-ordered set of floors.
// The zero value is an empty set ready to use.
// No mutex, no channel, no time: callers serialize access.
type PendingRequests struct {
	order []int
	index map[int]struct{}
}

// Add inserts floor and reports whether it was absent.
func (p *PendingRequests) Add(floor int) bool {
	if p.index == nil {
		p.index = make(map[int]struct{})
	}
	if _, ok := p.index[floor]; ok {
		return false
	}
	p.index[floor] = struct{}{}
	p.order = append(p.order, floor)
	return true
}

// Remove deletes floor, keeping the order of the remaining floors.
func (p *PendingRequests) Remove(floor int) bool {
	if _, ok := p.index[floor]; !ok {
		return false
	}
	delete(p.index, floor)
	for i, f := range p.order {
		if f == floor {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether floor is pending.
func (p *PendingRequests) Contains(floor int) bool {
	_, ok := p.index[floor]
	return ok
}

// Len returns the number of pending floors.
func (p *PendingRequests) Len() int {
	return len(p.order)
}

// First returns the oldest pending floor.
func (p *PendingRequests) First() (int, bool) {
	if len(p.order) == 0 {
		return 0, false
	}
	return p.order[0], true
}

// Floors returns the pending floors in insertion order.
func (p *PendingRequests) Floors() []int {
	floors := make([]int, len(p.order))
	copy(floors, p.order)
	return floors
}

// AnyAhead reports whether a pending floor lies strictly beyond floor in dir.
func (p *PendingRequests) AnyAhead(floor int, dir Direction) bool {
	for _, f := range p.order {
		switch dir {
		case DirUp:
			if f > floor {
				return true
			}
		case DirDown:
			if f < floor {
				return true
			}
		}
	}
	return false
}

// selectDirection picks the travel direction for an episode.
// Only the oldest request is compared against the current floor; later
// requests never influence the choice.
func selectDirection(current int, pending *PendingRequests) Direction {
	first, ok := pending.First()
	if !ok {
		return DirNone
	}
	if first > current {
		return DirUp
	}
	return DirDown
}

// step returns the floor reached after advancing one floor in dir.
func step(floor int, dir Direction) int {
	switch dir {
	case DirUp:
		return floor + 1
	case DirDown:
		return floor - 1
	}
	return floor
}

// State is a point-in-time copy of the controller state.
type State struct {
	Floor      int       `json:"floor"`
	Direction  Direction `json:"direction"`
	IsMoving   bool      `json:"isMoving"`
	Overweight bool      `json:"overweight"`
	Pending    []int     `json:"pending"`
}

// Idle reports whether the controller is at rest.
func (s State) Idle() bool {
	return !s.IsMoving && s.Direction == DirNone
}
