package core

import "github.com/book-expert/events"

// CaptchaSubmittedEvent asks the classification service to label the CAPTCHA
// stored under CaptchaKey.
type CaptchaSubmittedEvent struct {
	Header      events.EventHeader `json:"header"`
	CaptchaKey  string             `json:"captcha_key"`
	CaptchaType CaptchaType        `json:"captcha_type"`
}

// CaptchaClassifiedEvent is the reply to a CaptchaSubmittedEvent.
type CaptchaClassifiedEvent struct {
	Header     events.EventHeader `json:"header"`
	CaptchaKey string             `json:"captcha_key"`
	Label      string             `json:"label"`
}
