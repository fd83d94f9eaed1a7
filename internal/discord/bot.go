package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"starbucks/internal/activity"
	"starbucks/internal/checkin"
	"starbucks/internal/config"
	"starbucks/internal/models"
)

// ActivityRecorder receives participation events.
type ActivityRecorder interface {
	OnMessage(ev activity.MessageEvent)
	OnVoiceStateChange(ev activity.VoiceEvent)
	SyncVoice(guildID string, states []activity.VoiceEvent)
}

// Ledger is the part of the economy store the commands use.
type Ledger interface {
	Balances(ctx context.Context, userID string) (models.Balances, error)
	CleanAccount(ctx context.Context, userID string) (int64, error)
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (bool, error)
	ApplyFine(ctx context.Context, userID string, amount int64) (int64, error)
}

// Checkins claims and inspects daily check-ins.
type Checkins interface {
	Checkin(ctx context.Context, userID string, roles []string, now time.Time) (checkin.Result, error)
	SecondsUntilNextEligible(ctx context.Context, userID string, now time.Time) (int64, error)
	LastCheckin(ctx context.Context, userID string) (time.Time, bool, error)
	ClearCheckin(ctx context.Context, userID string) (bool, error)
}

// Zones reads and updates user timezones.
type Zones interface {
	Name(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, name string) (string, error)
}

// Values looks up reward table entries.
type Values interface {
	Value(action string) (int64, bool, error)
}

// Deps are the services the bot dispatches to.
type Deps struct {
	Activity ActivityRecorder
	Ledger   Ledger
	Checkins Checkins
	Zones    Zones
	Values   Values
}

// replier is the subset of *discordgo.Session used to answer commands.
type replier interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot represents the Discord bot
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	deps    Deps
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a new Discord bot
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	bot := newBot(cfg, deps, logger)
	bot.session = session

	session.AddHandler(bot.ready)
	session.AddHandler(bot.guildCreate)
	session.AddHandler(bot.voiceStateUpdate)
	session.AddHandler(bot.messageCreate)

	return bot, nil
}

func newBot(cfg *config.Config, deps Deps, logger zerolog.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// Start opens the gateway connection
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info().Str("guild", b.cfg.GuildID).Msg("bot is running")
	return nil
}

// Stop closes the gateway connection
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) ready(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected to gateway")
}

// guildCreate seeds the voice sets with members already connected when the
// session starts
func (b *Bot) guildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.ID != b.cfg.GuildID {
		return
	}
	states := make([]activity.VoiceEvent, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs == nil {
			continue
		}
		states = append(states, activity.VoiceEvent{
			GuildID:   g.ID,
			UserID:    vs.UserID,
			ChannelID: vs.ChannelID,
			Deaf:      vs.Deaf,
			SelfDeaf:  vs.SelfDeaf,
		})
	}
	b.deps.Activity.SyncVoice(g.ID, states)
	b.logger.Info().Str("guild", g.ID).Int("voice_states", len(states)).Msg("voice state synced")
}

// voiceStateUpdate forwards voice changes to the activity aggregator
func (b *Bot) voiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil {
		return
	}
	b.deps.Activity.OnVoiceStateChange(voiceEvent(vs))
}

func voiceEvent(vs *discordgo.VoiceStateUpdate) activity.VoiceEvent {
	ev := activity.VoiceEvent{
		GuildID:   vs.GuildID,
		UserID:    vs.UserID,
		ChannelID: vs.ChannelID,
		Deaf:      vs.Deaf,
		SelfDeaf:  vs.SelfDeaf,
	}
	if vs.BeforeUpdate != nil {
		ev.OldChannelID = vs.BeforeUpdate.ChannelID
	}
	return ev
}

// messageCreate records chat activity and runs commands
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMessage(s, m)
}

func (b *Bot) handleMessage(r replier, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}

	b.deps.Activity.OnMessage(activity.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
	})

	content := strings.TrimSpace(m.Content)
	if m.GuildID != b.cfg.GuildID || !strings.HasPrefix(content, b.cfg.CommandPrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := &command{
		name:    strings.ToLower(fields[0]),
		args:    fields[1:],
		message: m,
		reply:   r,
	}
	b.dispatch(ctx, cmd)
}
