package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"starbucks/internal/checkin"
	"starbucks/internal/rewards"
	"starbucks/internal/timezone"
	"starbucks/pkg/utils"
)

const (
	colorStarbucks = 0x00704A
	colorWarning   = 0xC0392B
)

// command is one parsed prefixed message.
type command struct {
	name    string
	args    []string
	message *discordgo.MessageCreate
	reply   replier
}

func (c *command) authorID() string {
	return c.message.Author.ID
}

func (c *command) roles() []string {
	if c.message.Member == nil {
		return nil
	}
	return c.message.Member.Roles
}

// target is the first mentioned user, else the author.
func (c *command) target() string {
	if len(c.message.Mentions) > 0 && c.message.Mentions[0] != nil {
		return c.message.Mentions[0].ID
	}
	for _, arg := range c.args {
		if utils.IsUserMention(arg) {
			return utils.ExtractUserIDFromMention(arg)
		}
	}
	return c.authorID()
}

func (b *Bot) send(c *command, content string) {
	if _, err := c.reply.ChannelMessageSend(c.message.ChannelID, content); err != nil {
		b.logger.Warn().Err(err).Str("command", c.name).Msg("failed to send reply")
	}
}

func (b *Bot) sendEmbed(c *command, embed *discordgo.MessageEmbed) {
	if _, err := c.reply.ChannelMessageSendEmbed(c.message.ChannelID, embed); err != nil {
		b.logger.Warn().Err(err).Str("command", c.name).Msg("failed to send embed")
	}
}

func (b *Bot) fail(c *command, err error) {
	b.logger.Error().Err(err).Str("command", c.name).Str("user", c.authorID()).Msg("command failed")
	b.send(c, "Something went wrong, please try again later.")
}

func (b *Bot) dispatch(ctx context.Context, c *command) {
	switch c.name {
	case "checkin":
		b.handleCheckin(ctx, c)
	case "profile":
		b.handleProfile(ctx, c)
	case "settimezone":
		b.handleSetTimezone(ctx, c)
	case "gettimezone":
		b.handleGetTimezone(ctx, c)
	case "transfermoney":
		b.handleTransfer(ctx, c)
	case "fine":
		b.moderatorOnly(ctx, c, b.handleFine)
	case "lastcheckin":
		b.moderatorOnly(ctx, c, b.handleLastCheckin)
	case "clearlastcheckin":
		b.moderatorOnly(ctx, c, b.handleClearLastCheckin)
	}
}

func (b *Bot) moderatorOnly(ctx context.Context, c *command, handler func(context.Context, *command)) {
	if !b.cfg.IsModerator(c.roles()) {
		b.send(c, "You do not have permission to use this command.")
		return
	}
	handler(ctx, c)
}

// handleCheckin handles the checkin command
func (b *Bot) handleCheckin(ctx context.Context, c *command) {
	userID := c.authorID()
	if _, err := b.deps.Ledger.CleanAccount(ctx, userID); err != nil {
		b.fail(c, err)
		return
	}

	res, err := b.deps.Checkins.Checkin(ctx, userID, c.roles(), b.now())
	if errors.Is(err, checkin.ErrUnmappedTier) {
		b.logger.Error().Err(err).Str("user", userID).Str("tier", res.Tier.String()).Msg("check-in reward is not configured")
		b.send(c, fmt.Sprintf("Check-in rewards are not configured for the %s tier. Please tell a moderator.", res.Tier))
		return
	}
	if err != nil {
		b.fail(c, err)
		return
	}

	next := utils.FormatDuration(int64(res.NextIn.Seconds()))
	if !res.Claimed {
		b.send(c, fmt.Sprintf("You already checked in today. Next check-in in %s.", next))
		return
	}

	balances, err := b.deps.Ledger.Balances(ctx, userID)
	if err != nil {
		b.fail(c, err)
		return
	}

	b.sendEmbed(c, &discordgo.MessageEmbed{
		Title: "Checked in!",
		Color: colorStarbucks,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reward", Value: utils.FormatStarbucks(res.Amount), Inline: true},
			{Name: "Networth", Value: utils.FormatStarbucks(balances.Networth), Inline: true},
			{Name: "Next check-in", Value: next, Inline: true},
		},
	})
}

// handleProfile handles the profile command
func (b *Bot) handleProfile(ctx context.Context, c *command) {
	userID := c.target()
	if _, err := b.deps.Ledger.CleanAccount(ctx, userID); err != nil {
		b.fail(c, err)
		return
	}
	balances, err := b.deps.Ledger.Balances(ctx, userID)
	if err != nil {
		b.fail(c, err)
		return
	}
	secs, err := b.deps.Checkins.SecondsUntilNextEligible(ctx, userID, b.now())
	if err != nil {
		b.fail(c, err)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Networth", Value: utils.FormatStarbucks(balances.Networth), Inline: true},
		{Name: "Expiring soon", Value: utils.FormatStarbucks(balances.AtRisk), Inline: true},
	}
	color := colorStarbucks
	if balances.Perma < 0 {
		color = colorWarning
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Outstanding fines", Value: utils.FormatStarbucks(-balances.Perma), Inline: true})
	} else {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Non-expiring", Value: utils.FormatStarbucks(balances.Perma), Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Next check-in", Value: utils.FormatDuration(secs)})

	b.sendEmbed(c, &discordgo.MessageEmbed{
		Description: "Profile of " + utils.FormatUserMention(userID),
		Color:       color,
		Fields:      fields,
	})
}

// handleSetTimezone handles the settimezone command
func (b *Bot) handleSetTimezone(ctx context.Context, c *command) {
	if len(c.args) != 1 {
		b.send(c, fmt.Sprintf("Usage: %ssettimezone <IANA name, e.g. Europe/Berlin>", b.cfg.CommandPrefix))
		return
	}
	name, err := b.deps.Zones.Set(ctx, c.authorID(), c.args[0])
	if errors.Is(err, timezone.ErrUnknownTimezone) {
		b.send(c, fmt.Sprintf("Unknown timezone %q. Use an IANA name such as America/New_York.", c.args[0]))
		return
	}
	if err != nil {
		b.fail(c, err)
		return
	}
	b.send(c, "Your timezone is now "+name+".")
}

// handleGetTimezone handles the gettimezone command
func (b *Bot) handleGetTimezone(ctx context.Context, c *command) {
	userID := c.target()
	name, err := b.deps.Zones.Name(ctx, userID)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.send(c, fmt.Sprintf("%s's timezone is %s.", utils.FormatUserMention(userID), name))
}

// handleTransfer handles the transfermoney command
func (b *Bot) handleTransfer(ctx context.Context, c *command) {
	usage := fmt.Sprintf("Usage: %stransfermoney @user <amount>", b.cfg.CommandPrefix)
	if len(c.args) != 2 {
		b.send(c, usage)
		return
	}
	to := c.target()
	amount, err := strconv.ParseInt(c.args[1], 10, 64)
	if err != nil || amount <= 0 || to == c.authorID() {
		b.send(c, usage)
		return
	}

	ok, err := b.deps.Ledger.Transfer(ctx, c.authorID(), to, amount)
	if err != nil {
		b.fail(c, err)
		return
	}
	if !ok {
		b.send(c, "Insufficient funds.")
		return
	}
	b.send(c, fmt.Sprintf("Sent %s to %s.", utils.FormatStarbucks(amount), utils.FormatUserMention(to)))
}

// handleFine handles the fine command
func (b *Bot) handleFine(ctx context.Context, c *command) {
	usage := fmt.Sprintf("Usage: %sfine @user <small|medium|large>", b.cfg.CommandPrefix)
	if len(c.args) != 2 {
		b.send(c, usage)
		return
	}
	userID := c.target()
	amount, ok, err := b.deps.Values.Value(rewards.FineAction(c.args[1]))
	if err != nil {
		b.fail(c, err)
		return
	}
	if !ok || amount <= 0 || userID == c.authorID() {
		b.send(c, usage)
		return
	}

	withdrawn, err := b.deps.Ledger.ApplyFine(ctx, userID, amount)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.logger.Info().Str("moderator", c.authorID()).Str("user", userID).Int64("amount", amount).Msg("fine applied")

	msg := fmt.Sprintf("Fined %s %s.", utils.FormatUserMention(userID), utils.FormatStarbucks(amount))
	if owed := amount - withdrawn; owed > 0 {
		msg += fmt.Sprintf(" %s is outstanding.", utils.FormatStarbucks(owed))
	}
	b.send(c, msg)
}

// handleLastCheckin handles the lastcheckin command
func (b *Bot) handleLastCheckin(ctx context.Context, c *command) {
	userID := c.target()
	last, ok, err := b.deps.Checkins.LastCheckin(ctx, userID)
	if err != nil {
		b.fail(c, err)
		return
	}
	if !ok {
		b.send(c, utils.FormatUserMention(userID)+" has never checked in.")
		return
	}
	b.send(c, fmt.Sprintf("%s last checked in <t:%d:F>.", utils.FormatUserMention(userID), last.Unix()))
}

// handleClearLastCheckin handles the clearlastcheckin command
func (b *Bot) handleClearLastCheckin(ctx context.Context, c *command) {
	userID := c.target()
	cleared, err := b.deps.Checkins.ClearCheckin(ctx, userID)
	if err != nil {
		b.fail(c, err)
		return
	}
	if !cleared {
		b.send(c, utils.FormatUserMention(userID)+" has no check-in to clear.")
		return
	}
	b.logger.Info().Str("moderator", c.authorID()).Str("user", userID).Msg("check-in cleared")
	b.send(c, "Cleared the last check-in of "+utils.FormatUserMention(userID)+".")
}
