package wire

// Mood is the expression the display controller renders.
type Mood uint8

const (
	MoodNeutral Mood = iota
	MoodHappy
	MoodSad
	MoodAngry
	MoodSurprised
	MoodSleepy
	MoodCurious
)

var moodNames = [...]string{"NEUTRAL", "HAPPY", "SAD", "ANGRY", "SURPRISED", "SLEEPY", "CURIOUS"}

// String returns the mood name.
func (m Mood) String() string {
	if int(m) < len(moodNames) {
		return moodNames[m]
	}
	return "UNKNOWN"
}

// ParseMood returns the mood with the given name (case-sensitive, upper case).
func ParseMood(s string) (Mood, bool) {
	for i, name := range moodNames {
		if name == s {
			return Mood(i), true
		}
	}
	return 0, false
}

// Mode is the device operating mode.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeActive
	ModeSleep
	ModeSafe
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeActive:
		return "ACTIVE"
	case ModeSleep:
		return "SLEEP"
	case ModeSafe:
		return "SAFE"
	default:
		return "UNKNOWN"
	}
}

// ParseMode returns the mode with the given upper-case name.
func ParseMode(s string) (Mode, bool) {
	for m := ModeIdle; m <= ModeSafe; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Gesture identifies a discrete one-shot animation.
type Gesture uint8

const (
	GestureBlink Gesture = iota + 1
	GestureWink
	GestureNod
	GestureShake
	GestureLookAround
)

// String returns the gesture name.
func (g Gesture) String() string {
	switch g {
	case GestureBlink:
		return "BLINK"
	case GestureWink:
		return "WINK"
	case GestureNod:
		return "NOD"
	case GestureShake:
		return "SHAKE"
	case GestureLookAround:
		return "LOOK_AROUND"
	default:
		return "UNKNOWN"
	}
}

// ParseGesture returns the gesture with the given upper-case name.
func ParseGesture(s string) (Gesture, bool) {
	for g := GestureBlink; g <= GestureLookAround; g++ {
		if g.String() == s {
			return g, true
		}
	}
	return 0, false
}

// Feature flags carried by SET_FLAGS.
const (
	FlagEyeTracking uint16 = 1 << iota
	FlagIdleAnimations
	FlagSound
	FlagObstacleStop
)
