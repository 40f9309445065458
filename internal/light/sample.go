package light

// Gesture codes reported by the APDS9960.
type Gesture uint8

const (
	GestureNone Gesture = iota
	GestureUp
	GestureDown
	GestureLeft
	GestureRight
)

func (g Gesture) String() string {
	switch g {
	case GestureUp:
		return "up"
	case GestureDown:
		return "down"
	case GestureLeft:
		return "left"
	case GestureRight:
		return "right"
	default:
		return "none"
	}
}

// Sample is one color + gesture reading.
type Sample struct {
	Source  string    `json:"source"`
	Time    string    `json:"time"`
	RGBW    [4]uint16 `json:"rgbw"` // red, green, blue, clear
	Gesture Gesture   `json:"gesture"`
}

// Proximity is the raw proximity count (0-255, larger is closer).
type Proximity struct {
	Time string  `json:"time"`
	Data float64 `json:"data"`
}
