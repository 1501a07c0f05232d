package protocol

import "fmt"

// Join enters a room. Identity fields are trusted as presented.
type Join struct {
	Type         MessageType `json:"type"`
	ProfileID    string      `json:"profileId"`
	ProfileName  string      `json:"profileName"`
	ProfileColor string      `json:"profileColor"`
	RoomID       string      `json:"roomId"`
}

type Leave struct {
	Type MessageType `json:"type"`
}

type StrokeStart struct {
	Type      MessageType `json:"type"`
	StrokeID  string      `json:"strokeId"`
	Tool      string      `json:"tool"`
	Color     string      `json:"color"`
	Thickness float64     `json:"thickness"`
}

type StrokePoint struct {
	Type     MessageType `json:"type"`
	StrokeID string      `json:"strokeId"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Pressure *float64    `json:"pressure,omitempty"`
}

// StrokeEnd finalizes a stroke. SVGPath is computed by the stroke owner and
// is opaque to the server.
type StrokeEnd struct {
	Type     MessageType `json:"type"`
	StrokeID string      `json:"strokeId"`
	SVGPath  string      `json:"svgPath"`
}

type StrokeDelete struct {
	Type     MessageType `json:"type"`
	StrokeID string      `json:"strokeId"`
}

type CursorMove struct {
	Type MessageType `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

type Ping struct {
	Type MessageType `json:"type"`
}

func (Join) MessageType() MessageType         { return TypeJoin }
func (Leave) MessageType() MessageType        { return TypeLeave }
func (StrokeStart) MessageType() MessageType  { return TypeStrokeStart }
func (StrokePoint) MessageType() MessageType  { return TypeStrokePoint }
func (StrokeEnd) MessageType() MessageType    { return TypeStrokeEnd }
func (StrokeDelete) MessageType() MessageType { return TypeStrokeDelete }
func (CursorMove) MessageType() MessageType   { return TypeCursorMove }
func (Ping) MessageType() MessageType         { return TypePing }

// Point returns the sampled position carried by a stroke:point message.
func (m StrokePoint) Point() Point {
	return Point{X: m.X, Y: m.Y, Pressure: m.Pressure}
}

func (m Join) validate() error {
	if m.ProfileID == "" {
		return fmt.Errorf("%w: profileId is required", ErrInvalidField)
	}
	if m.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidField)
	}
	return nil
}

func (m StrokeStart) validate() error {
	if m.StrokeID == "" {
		return fmt.Errorf("%w: strokeId is required", ErrInvalidField)
	}
	if m.Thickness < 0 {
		return fmt.Errorf("%w: thickness must not be negative", ErrInvalidField)
	}
	return nil
}

func (m StrokePoint) validate() error  { return requireStrokeID(m.StrokeID) }
func (m StrokeEnd) validate() error    { return requireStrokeID(m.StrokeID) }
func (m StrokeDelete) validate() error { return requireStrokeID(m.StrokeID) }

func requireStrokeID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: strokeId is required", ErrInvalidField)
	}
	return nil
}

var clientMessages = map[MessageType]func() Message{
	TypeJoin:         func() Message { return &Join{} },
	TypeLeave:        func() Message { return &Leave{} },
	TypeStrokeStart:  func() Message { return &StrokeStart{} },
	TypeStrokePoint:  func() Message { return &StrokePoint{} },
	TypeStrokeEnd:    func() Message { return &StrokeEnd{} },
	TypeStrokeDelete: func() Message { return &StrokeDelete{} },
	TypeCursorMove:   func() Message { return &CursorMove{} },
	TypePing:         func() Message { return &Ping{} },
}

// DecodeClient parses one inbound client message. The returned value is a
// pointer to one of the client message structs. Errors wrap ErrMalformed,
// ErrUnknownType or ErrInvalidField.
func DecodeClient(data []byte) (Message, error) {
	return decode(data, clientMessages)
}

// NewJoin builds a join message.
func NewJoin(profile Participant, roomID string) Join {
	return Join{
		Type:         TypeJoin,
		ProfileID:    profile.ProfileID,
		ProfileName:  profile.ProfileName,
		ProfileColor: profile.ProfileColor,
		RoomID:       roomID,
	}
}
