package upstream

import (
	"time"

	"github.com/shopspring/decimal"

	"academyhub/internal/model"
)

// Credentials bundle the outcome of a successful login or registration.
type Credentials struct {
	User         *model.User
	Token        string
	RefreshToken string
}

// RegistrationPayload is forwarded verbatim to the academy API.
type RegistrationPayload struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Role        model.Role `json:"role"`
	TeamID      string     `json:"teamId,omitempty"`
	PlayerID    string     `json:"playerId,omitempty"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Player is one roster entry.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position"`
	TeamID   string `json:"teamId"`
}

// AttendanceRecord is one player's presence at one training session.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	TrainingID string    `json:"trainingId"`
	PlayerID   string    `json:"playerId"`
	Date       time.Time `json:"date"`
	Present    bool      `json:"present"`
}

// AttendanceMark requests marking a player present or absent.
type AttendanceMark struct {
	TrainingID string `json:"trainingId"`
	PlayerID   string `json:"playerId"`
	Present    bool   `json:"present"`
}

// Invoice is one billing line for a player.
type Invoice struct {
	ID          string          `json:"id"`
	PlayerID    string          `json:"playerId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	DueDate     time.Time       `json:"dueDate"`
	Paid        bool            `json:"paid"`
}

// PlayerStatLine is one player's contribution in a match.
type PlayerStatLine struct {
	PlayerID      string `json:"playerId"`
	Goals         int    `json:"goals"`
	Assists       int    `json:"assists"`
	MinutesPlayed int    `json:"minutesPlayed"`
}

// MatchStatistics summarises a finished match.
type MatchStatistics struct {
	MatchID       string           `json:"matchId"`
	TeamGoals     int              `json:"teamGoals"`
	OpponentGoals int              `json:"opponentGoals"`
	Players       []PlayerStatLine `json:"players"`
}

// CheckinResult reports the outcome of a QR check-in scan.
type CheckinResult struct {
	PlayerID    string    `json:"playerId"`
	TrainingID  string    `json:"trainingId"`
	CheckedInAt time.Time `json:"checkedInAt"`
	Duplicate   bool      `json:"duplicate"`
}
