package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a wake notification.
type TelegramMessage struct {
	Success     bool
	Device      string
	MACAddress  string
	Mode        string
	Destination string
	Topic       string
	Time        time.Time

	// Error info (if failed).
	ErrorMessage string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
