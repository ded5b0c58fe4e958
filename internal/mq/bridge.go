package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	bridgeWriteWait  = 5 * time.Second
	bridgePingPeriod = 20 * time.Second
	bridgePongWait   = 3 * bridgePingPeriod
	bridgeReadLimit  = 64 * 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Bridge joins a local Bus to a Bus in another process over a websocket.
// Messages on Out are forwarded to the peer; messages arriving from the peer
// are published locally on In. Anything in flight when the link drops is lost.
type Bridge struct {
	bus *Bus
	out Topic
	in  Topic

	pingPeriod time.Duration
	// pongWait bounds the silence tolerated from the peer.
	pongWait time.Duration
}

func NewBridge(bus *Bus, out, in Topic) *Bridge {
	return &Bridge{bus: bus, out: out, in: in, pingPeriod: bridgePingPeriod, pongWait: bridgePongWait}
}

// ServeHTTP upgrades the request and pumps messages until either side closes.
func (br *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("MQ: bridge upgrade: %v", err)
		return
	}
	log.Infof("MQ: bridge peer connected from %s", r.RemoteAddr)
	err = br.pump(r.Context(), conn)
	log.Infof("MQ: bridge peer %s disconnected: %v", r.RemoteAddr, err)
}

// Dial connects to a bridge endpoint and pumps until ctx ends or the link drops.
func (br *Bridge) Dial(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("mq: dial %s: %w", url, err)
	}
	log.Infof("MQ: bridge connected to %s", url)
	return br.pump(ctx, conn)
}

// DialLoop keeps a bridge link to url open until ctx is cancelled.
func (br *Bridge) DialLoop(ctx context.Context, url string, backoff time.Duration) {
	for {
		err := br.Dial(ctx, url)
		if ctx.Err() != nil {
			return
		}
		log.Debugf("MQ: bridge to %s down: %v", url, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (br *Bridge) pump(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	ch, cancel, err := br.bus.Subscribe(br.out)
	if err != nil {
		return err
	}
	defer cancel()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	readErr := make(chan error, 1)
	go func() {
		defer stop()
		readErr <- br.readLoop(conn)
	}()

	ping := time.NewTicker(br.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(bridgeWriteWait))
			select {
			case err := <-readErr:
				return err
			default:
				return ctx.Err()
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(bridgeWriteWait)); err != nil {
				return err
			}
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			_ = conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

func (br *Bridge) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(bridgeReadLimit)
	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(br.pongWait)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		extend()
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("MQ: bridge skipped malformed frame: %v", err)
			continue
		}
		if msg.Topic != br.in {
			log.Warnf("MQ: bridge dropped %s on %s (expected %s)", msg.Type, msg.Topic, br.in)
			continue
		}
		if err := br.bus.Publish(br.in, msg.Payload); err != nil {
			log.Warnf("MQ: bridge republish %s: %v", msg.Type, err)
		}
	}
}
