package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"
)

// ScanEvent is what a scanning station publishes after reading a pass.
type ScanEvent struct {
	Token   string `json:"token"`
	Station string `json:"station"`
}

// ScanReply is published back on the station's own channel.
type ScanReply struct {
	OK                 bool   `json:"ok"`
	Token              string `json:"token"`
	RegistrationID     string `json:"registration_id,omitempty"`
	Course             string `json:"course,omitempty"`
	DisplayQueueNumber string `json:"display_queue_number,omitempty"`
	Message            string `json:"message"`
}

type ScanHandler func(ctx context.Context, ev ScanEvent) ScanReply

// ListenScans subscribes to the scan channel and answers every scan until
// ctx is done.
func (c *Client) ListenScans(ctx context.Context, channel string, handle ScanHandler) {
	listener := pubnub.NewListener()
	c.pn.AddListener(listener)
	c.pn.Subscribe().Channels([]string{channel}).Execute()

	defer func() {
		c.pn.Unsubscribe().Channels([]string{channel}).Execute()
		c.pn.RemoveListener(listener)
	}()

	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub scan channel")
			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub scan channel")
			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub scan channel")
			case pubnub.PNAccessDeniedCategory:
				slog.Error("Access denied on scan channel", "channel", channel)
			}

		case message := <-listener.Message:
			if message.Channel != channel {
				continue
			}
			c.handleScan(ctx, message.Message, handle)

		case <-ctx.Done():
			log.Println("close scan subscription")
			return
		}
	}
}

func (c *Client) handleScan(ctx context.Context, raw interface{}, handle ScanHandler) {
	ev, err := decodeScan(raw)
	if err != nil {
		slog.Warn("Dropping malformed scan", "error", err)
		return
	}

	reply := handle(ctx, ev)
	if err := c.publish(StationChannel(ev.Station), reply); err != nil {
		slog.Warn("Failed to answer station", "error", err, "station", ev.Station)
	}
}

// decodeScan accepts the payload either as a JSON string or as the decoded
// object PubNub hands over for JSON messages.
func decodeScan(raw interface{}) (ScanEvent, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ScanEvent{}, err
		}
		data = b
	}

	var ev ScanEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ScanEvent{}, err
	}
	if ev.Token == "" || ev.Station == "" {
		return ScanEvent{}, errors.New("scan without token or station")
	}
	return ev, nil
}
