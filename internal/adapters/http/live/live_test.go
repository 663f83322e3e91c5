package live_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/salle/internal/adapters/http/live"
	"github.com/okian/salle/pkg/logger"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func readMessage(conn *websocket.Conn) (live.Message, json.RawMessage, error) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var raw struct {
		Type    string          `json:"type"`
		Room    string          `json:"room"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&raw); err != nil {
		return live.Message{}, nil, err
	}
	return live.Message{Type: raw.Type, Room: raw.Room}, raw.Payload, nil
}

func TestHub(t *testing.T) {
	Convey("Given a running hub behind a websocket endpoint", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := live.NewHub(live.WithLogger(logger.Nop()))
		go hub.Run(ctx)

		h := live.NewHandler(hub, []string{"http://club.example"}, func(_ context.Context, room string) (any, error) {
			return map[string]string{"hello": room}, nil
		})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.Join(ctx, w, r, live.SessionRoom(7))
		}))
		defer srv.Close()
		url := "ws" + strings.TrimPrefix(srv.URL, "http")

		Convey("a client receives the snapshot and later broadcasts", func() {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			msg, payload, err := readMessage(conn)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, live.TypeSnapshot)
			So(msg.Room, ShouldEqual, "session_7")
			So(string(payload), ShouldEqual, `{"hello":"session_7"}`)

			So(eventually(func() bool { return hub.HasClients("session_7") }), ShouldBeTrue)
			So(hub.Broadcast("session_7", live.TypeSession, []int{1, 2}), ShouldBeNil)
			So(hub.Broadcast(live.LeaderboardRoom, live.TypeLeaderboard, nil), ShouldBeNil)

			msg, payload, err = readMessage(conn)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, live.TypeSession)
			So(string(payload), ShouldEqual, "[1,2]")

			Convey("and leaves the room when it disconnects", func() {
				So(conn.Close(), ShouldBeNil)
				So(eventually(func() bool { return hub.Clients("session_7") == 0 }), ShouldBeTrue)
			})
		})

		Convey("a foreign origin is rejected", func() {
			hdr := http.Header{"Origin": []string{"http://evil.example"}}
			_, resp, err := websocket.DefaultDialer.Dial(url, hdr)
			So(err, ShouldNotBeNil)
			So(resp, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
		})
	})
}
