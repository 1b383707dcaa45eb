package viewer

// State is the lifecycle position of a viewer.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	ContentShown
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case ContentShown:
		return "content-shown"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Layout selects where location content is presented.
type Layout string

const (
	LayoutSide  Layout = "side"
	LayoutPopup Layout = "popup"
)

// ParseLayout returns the layout named by s, defaulting to LayoutSide.
func ParseLayout(s string) Layout {
	if Layout(s) == LayoutPopup {
		return LayoutPopup
	}
	return LayoutSide
}
