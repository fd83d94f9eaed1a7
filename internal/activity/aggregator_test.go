package activity

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

const guild = "g1"

func sorted(users []string) []string {
	out := append([]string(nil), users...)
	sort.Strings(out)
	return out
}

func TestOnMessage_RecordsOncePerInterval(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: "u1"})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: "u1"})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: "u2"})

	snap := agg.Snapshot()
	assert.Equal(t, []string{"u1", "u2"}, sorted(snap.Text["c1"]))
}

func TestOnMessage_Filters(t *testing.T) {
	agg := NewAggregator(guild, []string{"ignored"}, 2)

	agg.OnMessage(MessageEvent{GuildID: "other", ChannelID: "c1", UserID: "u1"})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "ignored", UserID: "u1"})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: ""})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "", UserID: "u1"})

	assert.Empty(t, agg.Snapshot().Text)
}

func TestOnVoiceStateChange_JoinAndDisconnect(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	assert.Equal(t, []string{"u1"}, agg.Snapshot().Voice["v1"])

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1"})
	assert.Empty(t, agg.Snapshot().Voice)

	// redundant disconnect
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1"})
	assert.Empty(t, agg.Snapshot().Voice)
}

func TestOnVoiceStateChange_Switch(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "v2"})

	snap := agg.Snapshot()
	assert.NotContains(t, snap.Voice, "v1")
	assert.Equal(t, []string{"u1"}, snap.Voice["v2"])
}

func TestOnVoiceStateChange_SwitchWhileDeafened(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "v2", SelfDeaf: true})

	assert.Empty(t, agg.Snapshot().Voice)
}

func TestOnVoiceStateChange_DeafenAndUndeafen(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "v1", SelfDeaf: true})
	assert.Empty(t, agg.Snapshot().Voice)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "v1", Deaf: true})
	assert.Empty(t, agg.Snapshot().Voice)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "v1"})
	assert.Equal(t, []string{"u1"}, agg.Snapshot().Voice["v1"])
}

func TestOnVoiceStateChange_IgnoredChannels(t *testing.T) {
	agg := NewAggregator(guild, []string{"afk"}, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "afk"})
	assert.Empty(t, agg.Snapshot().Voice)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", ChannelID: "v1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u1", OldChannelID: "v1", ChannelID: "afk"})
	assert.Empty(t, agg.Snapshot().Voice)
}

func TestOnVoiceStateChange_OtherGuild(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	agg.OnVoiceStateChange(VoiceEvent{GuildID: "other", UserID: "u1", ChannelID: "v1"})
	assert.Empty(t, agg.Snapshot().Voice)
}

func TestAggregator_ConcurrentIngestion(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := string(rune('a' + i%26))
			agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: user})
			agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: user, ChannelID: "v1"})
			agg.Settle(fixedValues{voice: 1, chat: map[string]int64{"c1": 1}})
		}(i)
	}
	wg.Wait()

	assert.Len(t, agg.Snapshot().Voice["v1"], 26)
}

func TestAggregator_Counts(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c1", UserID: "u1"})
	agg.OnMessage(MessageEvent{GuildID: guild, ChannelID: "c2", UserID: "u1"})
	agg.OnVoiceStateChange(VoiceEvent{GuildID: guild, UserID: "u2", ChannelID: "v1"})

	text, voice := agg.Counts()
	assert.Equal(t, 2, text)
	assert.Equal(t, 1, voice)
}

func TestSyncVoice_ReplacesVoiceSets(t *testing.T) {
	agg := NewAggregator(guild, []string{"afk"}, 2)
	join(agg, "stale", "v9")
	post(agg, "u1", "c1")

	agg.SyncVoice(guild, []VoiceEvent{
		{UserID: "u1", ChannelID: "v1"},
		{UserID: "u2", ChannelID: "v1"},
		{UserID: "u3", ChannelID: "v1", SelfDeaf: true},
		{UserID: "u4", ChannelID: "afk"},
		{UserID: "", ChannelID: "v1"},
	})

	snap := agg.Snapshot()
	assert.Equal(t, []string{"u1", "u2"}, sorted(snap.Voice["v1"]))
	assert.Len(t, snap.Voice, 1)
	assert.Equal(t, []string{"u1"}, snap.Text["c1"])

	agg.SyncVoice("other", nil)
	assert.Len(t, agg.Snapshot().Voice, 1)
}
