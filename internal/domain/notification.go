package domain

// NotificationKind is a notable pipeline transition.
type NotificationKind string

const (
	NotificationStarted   NotificationKind = "started"
	NotificationSucceeded NotificationKind = "succeeded"
	NotificationFailed    NotificationKind = "failed"
)

const (
	ColorInProgress = "#FFDC00"
	ColorSuccess    = "#01FF70"
	ColorFailure    = "#FF4136"
)

// NotificationEvent is one outbound chat message. Delivery is fire-and-forget.
type NotificationEvent struct {
	Kind    NotificationKind
	Message string
}

func (e NotificationEvent) Color() string {
	switch e.Kind {
	case NotificationSucceeded:
		return ColorSuccess
	case NotificationFailed:
		return ColorFailure
	default:
		return ColorInProgress
	}
}
