package domain

import "errors"

var (
	ErrSpaceIDEmpty     = errors.New("space id empty")
	ErrSpaceDimensions  = errors.New("space dimensions must be positive")
	ErrSpaceNameTooLong = errors.New("space name too long")
)

const MaxSpaceNameLen = 64

type SpaceID string

// Space is the 2D grid a presence room maps onto. Width and height are
// copied into a session at join time and never change afterwards.
type Space struct {
	ID     SpaceID `json:"id"`
	Name   string  `json:"name,omitempty"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

func NewSpace(id SpaceID, name string, width, height int) (*Space, error) {
	if id == "" {
		return nil, ErrSpaceIDEmpty
	}
	if width <= 0 || height <= 0 {
		return nil, ErrSpaceDimensions
	}
	if len(name) > MaxSpaceNameLen {
		return nil, ErrSpaceNameTooLong
	}
	return &Space{ID: id, Name: name, Width: width, Height: height}, nil
}

// Position is an integer grid coordinate inside a space.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}
