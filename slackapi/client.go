package slackapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

const (
	defaultTimeout = time.Second * 10
	// conversations.list maximum
	listLimit  = 1000
	nanoDigits = 9
)

var (
	channelTypes    = []string{"public_channel", "private_channel"}
	ErrNoMessages   = errors.New("channel has no messages")
	ErrBadTimestamp = errors.New("unable to parse message timestamp")
)

// Client is the part of the Slack Web API the bot needs. Every call is bounded
// by the configured timeout.
type Client struct {
	api     *slack.Client
	timeout time.Duration
}

func New(token string, timeout time.Duration, options ...slack.Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	options = append([]slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout})}, options...)
	return &Client{
		api:     slack.New(token, options...),
		timeout: timeout,
	}
}

// ListChannels pages through the workspace's public and private channels
// and returns their ids keyed by name.
func (c *Client) ListChannels(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params := &slack.GetConversationsParameters{
		Types:           channelTypes,
		Limit:           listLimit,
		ExcludeArchived: true,
	}
	ids := map[string]string{}
	for {
		channels, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, errors.Wrap(err, "error on calling conversations.list")
		}
		for _, ch := range channels {
			ids[ch.Name] = ch.ID
		}
		if cursor == "" {
			return ids, nil
		}
		params.Cursor = cursor
	}
}

// LastActivity returns the time of the newest message in the channel, or of
// the newest reply in its thread if that is more recent.
func (c *Client) LastActivity(ctx context.Context, channelId string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	response, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelId,
		Limit:     1,
	})
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "error on calling conversations.history for %v", channelId)
	}
	if len(response.Messages) == 0 {
		return time.Time{}, errors.Wrap(ErrNoMessages, channelId)
	}
	message := response.Messages[0]
	last, err := parseTimestamp(message.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	if message.LatestReply != "" {
		reply, err := parseTimestamp(message.LatestReply)
		if err == nil && reply.After(last) {
			last = reply
		}
	}
	return last, nil
}

func (c *Client) SendDirectMessage(ctx context.Context, userId, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, _, err := c.api.PostMessageContext(ctx, userId, slack.MsgOptionText(text, false))
	if err != nil {
		return errors.Wrapf(err, "error on sending message to %v", userId)
	}
	return nil
}

// parseTimestamp reads Slack's "<seconds>.<fraction>" message timestamps.
func parseTimestamp(ts string) (time.Time, error) {
	secText, fracText, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secText, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrBadTimestamp, "%q", ts)
	}
	var nsec int64
	if fracText != "" {
		if len(fracText) > nanoDigits {
			fracText = fracText[:nanoDigits]
		}
		fracText += strings.Repeat("0", nanoDigits-len(fracText))
		nsec, err = strconv.ParseInt(fracText, 10, 64)
		if err != nil {
			return time.Time{}, errors.Wrapf(ErrBadTimestamp, "%q", ts)
		}
	}
	return time.Unix(sec, nsec), nil
}
