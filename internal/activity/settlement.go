package activity

// RewardValues resolves reward amounts for one settlement.
type RewardValues interface {
	VoiceReward() int64
	ChatReward(channelID string) int64
}

// Tick is the outcome of one settlement: per-user voice and chat rewards.
type Tick struct {
	Voice map[string]int64
	Chat  map[string]int64
}

// Empty reports whether the tick rewards nobody.
func (t Tick) Empty() bool {
	return len(t.Voice) == 0 && len(t.Chat) == 0
}

// Settle consumes one interval of activity. Users in any voice channel with at
// least the minimum population earn the voice reward once; chatters earn the
// highest chat reward among the channels they posted in. Text sets are cleared,
// voice sets are left as they are.
func (a *Aggregator) Settle(values RewardValues) Tick {
	a.mu.Lock()
	defer a.mu.Unlock()

	tick := Tick{
		Voice: make(map[string]int64),
		Chat:  make(map[string]int64),
	}

	voiceReward := values.VoiceReward()
	for _, connected := range a.voice {
		if len(connected) < a.minVoiceConnected {
			continue
		}
		for userID := range connected {
			if _, credited := tick.Voice[userID]; credited {
				continue
			}
			tick.Voice[userID] = voiceReward
		}
	}

	for channelID, users := range a.text {
		if len(users) == 0 {
			continue
		}
		value := values.ChatReward(channelID)
		for userID := range users {
			if current, ok := tick.Chat[userID]; !ok || value > current {
				tick.Chat[userID] = value
			}
		}
	}

	clear(a.text)

	return tick
}
