package alert

import (
	"strings"
	"time"
)

// Level 為通知嚴重程度。
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Color 回傳聊天通知使用的顏色。
func (l Level) Color() string {
	switch l {
	case LevelWarning:
		return "#ff9900"
	case LevelCritical:
		return "#ff0000"
	default:
		return "#36a64f"
	}
}

// Upper 回傳大寫名稱，用於郵件主旨。
func (l Level) Upper() string {
	return strings.ToUpper(string(l))
}

// Alert 是一則送往所有通道的通知。
type Alert struct {
	Title    string
	Message  string
	Level    Level
	ClientID string
	SentAt   time.Time
}
