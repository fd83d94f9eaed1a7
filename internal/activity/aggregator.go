// Package activity turns chat and voice presence into periodic Starbucks
// rewards. Event handlers record participation into an Aggregator; a
// Scheduler settles it once per interval.
package activity

import (
	"sync"
)

// MessageEvent is a message posted in a text channel.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	UserID    string
}

// VoiceEvent is a voice state change. Empty channel IDs mean "not connected".
type VoiceEvent struct {
	GuildID      string
	UserID       string
	OldChannelID string
	ChannelID    string
	Deaf         bool
	SelfDeaf     bool
}

type userSet map[string]struct{}

// Aggregator owns the per-channel participation sets. Text sets are cleared by
// every settlement; voice sets mirror live connection state.
type Aggregator struct {
	mu sync.Mutex

	guildID           string
	ignored           map[string]struct{}
	minVoiceConnected int

	text  map[string]userSet
	voice map[string]userSet
}

// NewAggregator creates an aggregator for one guild. minVoiceConnected below
// one is treated as one.
func NewAggregator(guildID string, ignoredChannelIDs []string, minVoiceConnected int) *Aggregator {
	ignored := make(map[string]struct{}, len(ignoredChannelIDs))
	for _, id := range ignoredChannelIDs {
		ignored[id] = struct{}{}
	}
	return &Aggregator{
		guildID:           guildID,
		ignored:           ignored,
		minVoiceConnected: max(minVoiceConnected, 1),
		text:              make(map[string]userSet),
		voice:             make(map[string]userSet),
	}
}

func (a *Aggregator) isIgnored(channelID string) bool {
	_, ok := a.ignored[channelID]
	return ok
}

// OnMessage records that the user chatted in the channel this interval.
func (a *Aggregator) OnMessage(ev MessageEvent) {
	if ev.GuildID != a.guildID || ev.UserID == "" || ev.ChannelID == "" || a.isIgnored(ev.ChannelID) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	add(a.text, ev.ChannelID, ev.UserID)
}

// OnVoiceStateChange keeps the voice sets equal to the connected, undeafened
// population of every tracked channel.
func (a *Aggregator) OnVoiceStateChange(ev VoiceEvent) {
	if ev.GuildID != a.guildID || ev.UserID == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.applyVoice(ev)
}

// SyncVoice replaces the voice sets with the given connection states, as
// received when a gateway session (re)starts. States for other guilds are
// skipped.
func (a *Aggregator) SyncVoice(guildID string, states []VoiceEvent) {
	if guildID != a.guildID {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.voice)
	for _, ev := range states {
		if ev.UserID == "" {
			continue
		}
		ev.OldChannelID = ""
		a.applyVoice(ev)
	}
}

func (a *Aggregator) applyVoice(ev VoiceEvent) {
	// disconnected
	if ev.ChannelID == "" {
		if ev.OldChannelID != "" {
			remove(a.voice, ev.OldChannelID, ev.UserID)
		}
		return
	}

	// switched channels, then evaluate as a join
	if ev.OldChannelID != "" && ev.OldChannelID != ev.ChannelID {
		remove(a.voice, ev.OldChannelID, ev.UserID)
	}

	if a.isIgnored(ev.ChannelID) {
		return
	}

	if ev.Deaf || ev.SelfDeaf {
		remove(a.voice, ev.ChannelID, ev.UserID)
		return
	}

	add(a.voice, ev.ChannelID, ev.UserID)
}

func add(sets map[string]userSet, channelID, userID string) {
	set, ok := sets[channelID]
	if !ok {
		set = make(userSet)
		sets[channelID] = set
	}
	set[userID] = struct{}{}
}

func remove(sets map[string]userSet, channelID, userID string) {
	if set, ok := sets[channelID]; ok {
		delete(set, userID)
	}
}

// Snapshot is a copy of the participation sets.
type Snapshot struct {
	Text  map[string][]string
	Voice map[string][]string
}

// Snapshot copies the current sets. Channels with no members are omitted.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{Text: copySets(a.text), Voice: copySets(a.voice)}
}

func copySets(sets map[string]userSet) map[string][]string {
	out := make(map[string][]string, len(sets))
	for channelID, set := range sets {
		if len(set) == 0 {
			continue
		}
		users := make([]string, 0, len(set))
		for userID := range set {
			users = append(users, userID)
		}
		out[channelID] = users
	}
	return out
}

// Counts returns how many users are in the text and voice sets.
func (a *Aggregator) Counts() (text, voice int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, set := range a.text {
		text += len(set)
	}
	for _, set := range a.voice {
		voice += len(set)
	}
	return text, voice
}
