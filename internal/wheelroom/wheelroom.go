// Package wheelroom defines the core domain types shared by the room,
// wheel, spin and history packages.
// It has no external dependencies.
package wheelroom

import "time"

type Role string

const (
	RoleHost      Role = "HOST"
	RolePlayer    Role = "PLAYER"
	RoleSpectator Role = "SPECTATOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleHost, RolePlayer, RoleSpectator:
		return true
	}
	return false
}

type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

type Room struct {
	ID              string        `json:"id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	HostID          string        `json:"hostId"`
	IsPublic        bool          `json:"isPublic"`
	PasswordHash    string        `json:"-"`
	MaxParticipants int           `json:"maxParticipants,omitempty"`
	IsActive        bool          `json:"isActive"`
	Participants    []Participant `json:"participants"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// HasPassword reports whether joining requires a password.
func (r *Room) HasPassword() bool { return r.PasswordHash != "" }

// Participant returns the member with the given user id, or nil.
func (r *Room) Participant(userID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// Full reports whether a brand-new member would exceed the cap.
func (r *Room) Full() bool {
	return r.MaxParticipants > 0 && len(r.Participants) >= r.MaxParticipants
}

type Participant struct {
	UserID     string     `json:"userId"`
	Nickname   string     `json:"nickname"`
	Role       Role       `json:"role"`
	Status     Status     `json:"status"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

type Wheel struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	Title           string    `json:"title"`
	Segments        []Segment `json:"segments"`
	SpinDuration    int       `json:"spinDuration"`
	SoundEnabled    bool      `json:"soundEnabled"`
	ConfettiEnabled bool      `json:"confettiEnabled"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Duration is SpinDuration as a time.Duration.
func (w *Wheel) Duration() time.Duration {
	return time.Duration(w.SpinDuration) * time.Millisecond
}

type Segment struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Color  string  `json:"color"`
	Weight float64 `json:"weight"`
	Icon   string  `json:"icon,omitempty"`
	Order  int     `json:"order"`
}

type SpinRecord struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId"`
	WheelID         string    `json:"wheelId"`
	SpinnerID       string    `json:"spinnerId"`
	SpinnerNickname string    `json:"spinnerNickname"`
	Result          string    `json:"result"`
	SegmentID       string    `json:"segmentId"`
	Seed            int64     `json:"seed"`
	Rotation        int       `json:"rotation"`
	SpunAt          time.Time `json:"spunAt"`
}

type SegmentStatistics struct {
	SegmentID  string  `json:"segmentId"`
	Text       string  `json:"text"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type RoomStatistics struct {
	TotalSpins   int                 `json:"totalSpins"`
	SegmentStats []SegmentStatistics `json:"segmentStats"`
	LastSpunAt   *time.Time          `json:"lastSpunAt"`
}

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageSystem MessageType = "SYSTEM"
	MessageEmoji  MessageType = "EMOJI"
)

type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	UserID    string      `json:"userId,omitempty"`
	Nickname  string      `json:"nickname,omitempty"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}
