package model

// Settings are the user's persistent preferences.
type Settings struct {
	Strictness           Strictness `json:"strictness"`
	Whitelist            []string   `json:"whitelist"`
	Blacklist            []string   `json:"blacklist"`
	ShowStats            bool       `json:"showStats"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	AIEnabled            bool       `json:"aiEnabled"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		Strictness:           StrictnessStandard,
		Whitelist:            []string{},
		Blacklist:            []string{},
		ShowStats:            true,
		NotificationsEnabled: true,
		AIEnabled:            true,
	}
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	Strictness           *Strictness `json:"strictness,omitempty"`
	Whitelist            []string    `json:"whitelist,omitempty"`
	Blacklist            []string    `json:"blacklist,omitempty"`
	ShowStats            *bool       `json:"showStats,omitempty"`
	NotificationsEnabled *bool       `json:"notificationsEnabled,omitempty"`
	AIEnabled            *bool       `json:"aiEnabled,omitempty"`
}

// Apply merges the update into s and returns the result.
func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.Strictness != nil {
		s.Strictness = *u.Strictness
	}
	if u.Whitelist != nil {
		s.Whitelist = u.Whitelist
	}
	if u.Blacklist != nil {
		s.Blacklist = u.Blacklist
	}
	if u.ShowStats != nil {
		s.ShowStats = *u.ShowStats
	}
	if u.NotificationsEnabled != nil {
		s.NotificationsEnabled = *u.NotificationsEnabled
	}
	if u.AIEnabled != nil {
		s.AIEnabled = *u.AIEnabled
	}
	return s
}
