package protocol

type Joined struct {
	Type         MessageType   `json:"type"`
	Participants []Participant `json:"participants"`
}

type ParticipantJoined struct {
	Type        MessageType `json:"type"`
	Participant Participant `json:"participant"`
}

type ParticipantLeft struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
}

type StrokeStarted struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
	StrokeID  string      `json:"strokeId"`
	Tool      string      `json:"tool"`
	Color     string      `json:"color"`
	Thickness float64     `json:"thickness"`
}

// StrokePoints carries one flushed batch. Batches have no sequence number;
// arrival order is the ordering authority.
type StrokePoints struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
	StrokeID  string      `json:"strokeId"`
	Points    []Point     `json:"points"`
}

type StrokeEnded struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
	StrokeID  string      `json:"strokeId"`
	SVGPath   string      `json:"svgPath"`
}

type StrokeDeleted struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
	StrokeID  string      `json:"strokeId"`
}

type CursorMoved struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profileId"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
}

type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

type Pong struct {
	Type MessageType `json:"type"`
}

func (Joined) MessageType() MessageType            { return TypeJoined }
func (ParticipantJoined) MessageType() MessageType { return TypeParticipantJoined }
func (ParticipantLeft) MessageType() MessageType   { return TypeParticipantLeft }
func (StrokeStarted) MessageType() MessageType     { return TypeStrokeStarted }
func (StrokePoints) MessageType() MessageType      { return TypeStrokePoints }
func (StrokeEnded) MessageType() MessageType       { return TypeStrokeEnded }
func (StrokeDeleted) MessageType() MessageType     { return TypeStrokeDeleted }
func (CursorMoved) MessageType() MessageType       { return TypeCursorMoved }
func (Error) MessageType() MessageType             { return TypeError }
func (Pong) MessageType() MessageType              { return TypePong }

var serverMessages = map[MessageType]func() Message{
	TypeJoined:            func() Message { return &Joined{} },
	TypeParticipantJoined: func() Message { return &ParticipantJoined{} },
	TypeParticipantLeft:   func() Message { return &ParticipantLeft{} },
	TypeStrokeStarted:     func() Message { return &StrokeStarted{} },
	TypeStrokePoints:      func() Message { return &StrokePoints{} },
	TypeStrokeEnded:       func() Message { return &StrokeEnded{} },
	TypeStrokeDeleted:     func() Message { return &StrokeDeleted{} },
	TypeCursorMoved:       func() Message { return &CursorMoved{} },
	TypeError:             func() Message { return &Error{} },
	TypePong:              func() Message { return &Pong{} },
}

// DecodeServer parses one message sent by the server.
func DecodeServer(data []byte) (Message, error) {
	return decode(data, serverMessages)
}

// Message constructors

func NewJoined(participants []Participant) Joined {
	if participants == nil {
		participants = []Participant{}
	}
	return Joined{Type: TypeJoined, Participants: participants}
}

func NewParticipantJoined(p Participant) ParticipantJoined {
	return ParticipantJoined{Type: TypeParticipantJoined, Participant: p}
}

func NewParticipantLeft(profileID string) ParticipantLeft {
	return ParticipantLeft{Type: TypeParticipantLeft, ProfileID: profileID}
}

func NewStrokeStarted(profileID string, m StrokeStart) StrokeStarted {
	return StrokeStarted{
		Type:      TypeStrokeStarted,
		ProfileID: profileID,
		StrokeID:  m.StrokeID,
		Tool:      m.Tool,
		Color:     m.Color,
		Thickness: m.Thickness,
	}
}

func NewStrokePoints(profileID, strokeID string, points []Point) StrokePoints {
	return StrokePoints{Type: TypeStrokePoints, ProfileID: profileID, StrokeID: strokeID, Points: points}
}

func NewStrokeEnded(profileID, strokeID, svgPath string) StrokeEnded {
	return StrokeEnded{Type: TypeStrokeEnded, ProfileID: profileID, StrokeID: strokeID, SVGPath: svgPath}
}

func NewStrokeDeleted(profileID, strokeID string) StrokeDeleted {
	return StrokeDeleted{Type: TypeStrokeDeleted, ProfileID: profileID, StrokeID: strokeID}
}

func NewCursorMoved(profileID string, x, y float64) CursorMoved {
	return CursorMoved{Type: TypeCursorMoved, ProfileID: profileID, X: x, Y: y}
}

func NewError(code, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}

func NewPong() Pong {
	return Pong{Type: TypePong}
}
