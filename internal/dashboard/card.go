package dashboard

// State is the presentation state of one video card.
type State int

const (
	Idle State = iota
	HoverLoading
	HoverPlaying
	HoverError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HoverLoading:
		return "hover-loading"
	case HoverPlaying:
		return "hover-playing"
	case HoverError:
		return "hover-error"
	default:
		return "unknown"
	}
}

type Event int

const (
	HoverEnter Event = iota
	AssetReady
	AssetFailed
	HoverExit
)

func (e Event) String() string {
	switch e {
	case HoverEnter:
		return "hover-enter"
	case AssetReady:
		return "asset-ready"
	case AssetFailed:
		return "asset-failed"
	case HoverExit:
		return "hover-exit"
	default:
		return "unknown"
	}
}

// Effect is the side effect the owner of a card performs after a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectRequestPreview
	EffectRenderClip
	EffectShowFallback
	EffectDiscardPreview
)

// Element is what a card displays.
type Element int

const (
	ElementThumbnail Element = iota
	ElementLoadingIndicator
	ElementClip
	ElementErrorMessage
)

const (
	LoadingMessage     = "Loading preview..."
	PreviewUnavailable = "Preview not available"
)

func (e Element) String() string {
	switch e {
	case ElementThumbnail:
		return "thumbnail"
	case ElementLoadingIndicator:
		return LoadingMessage
	case ElementClip:
		return "preview clip"
	case ElementErrorMessage:
		return PreviewUnavailable
	default:
		return "unknown"
	}
}

// Card is the presentation state of one video. The zero value is an idle card.
type Card struct {
	Id    string
	Ref   string
	State State
}

func NewCard(id, ref string) Card {
	return Card{Id: id, Ref: ref, State: Idle}
}

type transition struct {
	to     State
	effect Effect
}

var transitions = map[State]map[Event]transition{
	Idle: {
		HoverEnter: {HoverLoading, EffectRequestPreview},
	},
	HoverLoading: {
		AssetReady:  {HoverPlaying, EffectRenderClip},
		AssetFailed: {HoverError, EffectShowFallback},
		HoverExit:   {Idle, EffectDiscardPreview},
	},
	HoverPlaying: {
		HoverExit: {Idle, EffectDiscardPreview},
	},
	HoverError: {
		HoverExit: {Idle, EffectDiscardPreview},
	},
}

// Reduce applies the event to the card. Events with no transition from the
// current state leave the card unchanged and yield EffectNone.
func Reduce(c Card, e Event) (Card, Effect) {
	t, ok := transitions[c.State][e]
	if !ok {
		return c, EffectNone
	}
	c.State = t.to
	return c, t.effect
}

func (c Card) Hovered() bool { return c.State != Idle }

func (c Card) PreviewLoading() bool { return c.State == HoverLoading }

func (c Card) PreviewFailed() bool { return c.State == HoverError }

// Visible is the single element the card displays.
func (c Card) Visible() Element {
	switch c.State {
	case HoverLoading:
		return ElementLoadingIndicator
	case HoverPlaying:
		return ElementClip
	case HoverError:
		return ElementErrorMessage
	default:
		return ElementThumbnail
	}
}
