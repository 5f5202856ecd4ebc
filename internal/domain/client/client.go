package client

import (
	"errors"
	"fmt"
	"time"
)

// AutomationStatus 描述客戶的自動化生命週期狀態。
type AutomationStatus string

const (
	StatusInactive  AutomationStatus = "inactive"
	StatusDeploying AutomationStatus = "deploying"
	StatusActive    AutomationStatus = "active"
	StatusPaused    AutomationStatus = "paused"
	StatusError     AutomationStatus = "error"
)

// ErrInvalidTransition 表示狀態機不允許的轉換。
var ErrInvalidTransition = errors.New("invalid automation status transition")

var transitions = map[AutomationStatus][]AutomationStatus{
	StatusInactive:  {StatusDeploying},
	StatusDeploying: {StatusActive},
	StatusActive:    {StatusPaused},
	StatusPaused:    {StatusActive},
	StatusError:     {StatusDeploying},
}

// CanTransition 判斷 from -> to 是否合法；任何狀態都可以進入 error。
func CanTransition(from, to AutomationStatus) bool {
	if to == StatusError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 回傳新狀態，不合法時回傳 ErrInvalidTransition。
func (s AutomationStatus) Transition(to AutomationStatus) (AutomationStatus, error) {
	if !CanTransition(s, to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

// Schedulable 表示排程元件（同步、優化、策略）可處理此客戶。
func (s AutomationStatus) Schedulable() bool {
	return s == StatusActive || s == StatusDeploying
}

// Credentials 為客戶自帶的平台應用程式設定，未設定時使用系統預設。
type Credentials struct {
	MetaAppID            string
	MetaAppSecret        string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleDeveloperToken string
}

// Client 代表一個租戶。
type Client struct {
	ID               string
	UserID           string
	CompanyName      string
	Website          string
	Country          string
	Industry         string
	MonthlyBudget    float64
	Currency         string
	AutomationStatus AutomationStatus
	IsActive         bool
	Credentials      Credentials
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
