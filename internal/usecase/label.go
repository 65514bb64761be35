package usecase

import (
	"sync"
	"time"
)

// SessionLabel names the trading session a run belongs to. Scheduled runs
// land in the listed hours of Taipei time; anything else falls back to the
// market that is open during the day.
func SessionLabel(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	switch now.Hour() {
	case 8:
		return "🏹 台股市場快訊"
	case 13:
		return "🏹 台股午盤快訊"
	case 21:
		return "⚡ 美股盤前快訊"
	case 6:
		return "🌙 美股盤後回顧"
	}
	if h := now.Hour(); h >= 8 && h < 17 {
		return "🏹 台股快訊"
	}
	return "⚡ 美股快訊"
}

// pendingLabel hands the session label to the first call of the run that
// actually goes out. A call that is not accepted gives it back.
type pendingLabel struct {
	mu   sync.Mutex
	text string
}

func (l *pendingLabel) take() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	text := l.text
	l.text = ""
	return text
}

func (l *pendingLabel) restore(text string) {
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.text == "" {
		l.text = text
	}
}
