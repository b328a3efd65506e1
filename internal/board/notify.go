package board

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

type Notifier interface {
	Notify(Notification)
}

// NotifierFunc позволяет передать обычную функцию как Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

func success(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeveritySuccess}
}

func failure(title string, err error) Notification {
	return Notification{Title: title, Description: err.Error(), Severity: SeverityError}
}

func info(title, description string) Notification {
	return Notification{Title: title, Description: description, Severity: SeverityInfo}
}

// Заголовки уведомлений
const (
	TitleLoadFailed         = "Could not load tasks"
	TitleApplied            = "Application submitted"
	TitleAlreadyApplied     = "Already applied"
	TitleApplyFailed        = "Could not submit application"
	TitleApplicationsFailed = "Could not load applications"
	TitleAccepted           = "Application accepted"
	TitleRejected           = "Application rejected"
	TitleStatusFailed       = "Could not update application"
	TitleDeliverySubmitted  = "Delivery submitted"
	TitleDeliveryFailed     = "Could not submit delivery"
	TitleChangesRequested   = "Changes requested"
	TitleDeliveryApproved   = "Delivery approved"
	TitleReviewFailed       = "Could not review delivery"
	TitleRatingFailed       = "Could not save rating"
)
