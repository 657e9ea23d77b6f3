// Package realtime is the PubNub side of the check-in system: display
// boards and registrant devices subscribe to it, scanning stations publish
// to it.
package realtime

import (
	"context"
	"fmt"

	"checkin-system/internal/services/notify"
	"checkin-system/models"

	pubnub "github.com/pubnub/go/v7"
)

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func DisplayChannel(activityID string) string { return "display-" + activityID }
func UserChannel(contactID string) string     { return "user-" + contactID }
func StationChannel(station string) string    { return "station-" + station }

type Client struct {
	pn      *pubnub.PubNub
	publish func(channel string, message interface{}) error
}

func New(cfg Config) *Client {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	c := &Client{pn: pubnub.NewPubNub(pnCfg)}
	c.publish = c.pnPublish
	return c
}

func (c *Client) pnPublish(channel string, message interface{}) error {
	_, st, err := c.pn.Publish().Channel(channel).Message(message).Execute()
	if err != nil {
		return fmt.Errorf("pubnub: publish %s: status %d: %w", channel, st.StatusCode, err)
	}
	return nil
}

func (c *Client) Name() string { return "pubnub" }

type userNotification struct {
	Type     string            `json:"type"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params"`
	Text     string            `json:"text"`
}

// Send delivers msg to the contact's personal channel, which the
// registrant's browser or LIFF page subscribes to.
func (c *Client) Send(ctx context.Context, contactID string, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(UserChannel(contactID), userNotification{
		Type:     "notification",
		Template: msg.Template,
		Params:   msg.Params,
		Text:     msg.Text(),
	})
}

// PublishDisplay pushes a call or recall to every board of the activity.
func (c *Client) PublishDisplay(ctx context.Context, update models.DisplayUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(DisplayChannel(update.ActivityID), update)
}

func (c *Client) Close() {
	c.pn.UnsubscribeAll()
	c.pn.Destroy()
}
