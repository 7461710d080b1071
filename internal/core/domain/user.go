package domain

import "time"

type Role string

const (
	RoleGuest      Role = "guest"
	RoleDJ         Role = "dj"
	RoleVenueOwner Role = "venue_owner"
	RoleManager    Role = "manager"
	RoleSysAdmin   Role = "sysadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleDJ, RoleVenueOwner, RoleManager, RoleSysAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role carries platform-wide moderation rights.
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleSysAdmin
}

// User is keyed by Username. Role and venue ownership are independent:
// a DJ may also own a venue.
type User struct {
	Username        string    `json:"username"`
	Role            Role      `json:"role"`
	IsVenueOwner    bool      `json:"is_venue_owner"`
	PasswordHash    string    `json:"password_hash"`
	CurrentIP       string    `json:"current_ip"`
	IPHistory       []string  `json:"ip_history"`
	BanStrikeCount  int       `json:"ban_strike_count"`
	IsPermanentBan  bool      `json:"is_permanent_ban"`
	IsGloballyMuted bool      `json:"is_globally_muted"`
	CreatedAt       time.Time `json:"created_at"`

	// Version is bumped on every ban-record write and used for
	// compare-and-update against the store.
	Version int64 `json:"version"`
}

// Clone returns a deep copy so callers can mutate without touching
// the stored record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.IPHistory != nil {
		c.IPHistory = append([]string(nil), u.IPHistory...)
	}
	return &c
}

// LastIP returns the most recently observed IP, or "" when none is known.
func (u *User) LastIP() string {
	if len(u.IPHistory) == 0 {
		return ""
	}
	return u.IPHistory[len(u.IPHistory)-1]
}

// BanRecord is the moderation view of a user.
type BanRecord struct {
	Username        string   `json:"username"`
	CurrentIP       string   `json:"current_ip"`
	IPHistory       []string `json:"ip_history"`
	BanStrikeCount  int      `json:"ban_strike_count"`
	IsPermanentBan  bool     `json:"is_permanent_ban"`
	IsGloballyMuted bool     `json:"is_globally_muted"`
}

func (u *User) BanRecord() BanRecord {
	return BanRecord{
		Username:        u.Username,
		CurrentIP:       u.CurrentIP,
		IPHistory:       append([]string(nil), u.IPHistory...),
		BanStrikeCount:  u.BanStrikeCount,
		IsPermanentBan:  u.IsPermanentBan,
		IsGloballyMuted: u.IsGloballyMuted,
	}
}
