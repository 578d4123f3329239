package ws_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	ws "github.com/aquametrics/shrimpd/internal/adapters/ws"
	model "github.com/aquametrics/shrimpd/internal/domain/model"
	"github.com/aquametrics/shrimpd/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeConn struct {
	mu       sync.Mutex
	writes   []any
	failNext bool
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext || c.closed {
		return errors.New("write on closed connection")
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func testUpdate() model.StatusUpdate {
	return model.NewStatusUpdate(model.TrainingStatus{
		Status:   model.StatusTraining,
		Progress: 60.0,
		Message:  "Training epoch 50/100",
	})
}

func TestHubSubscribe(t *testing.T) {
	convey.Convey("Given an empty hub", t, func() {
		hub := ws.NewHub()

		convey.Convey("When subscribers connect", func() {
			idA := hub.Subscribe(&fakeConn{})
			idB := hub.Subscribe(&fakeConn{})

			convey.Convey("Then each should get a distinct handle", func() {
				convey.So(idA, convey.ShouldNotBeEmpty)
				convey.So(idB, convey.ShouldNotBeEmpty)
				convey.So(idA, convey.ShouldNotEqual, idB)
				convey.So(hub.Count(), convey.ShouldEqual, 2)
			})

			convey.Convey("And one disconnects", func() {
				hub.Unsubscribe(idA)

				convey.Convey("Then only the other remains", func() {
					convey.So(hub.Count(), convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And unsubscribing an unknown handle", func() {
				hub.Unsubscribe("no-such-subscriber")

				convey.Convey("Then nothing changes", func() {
					convey.So(hub.Count(), convey.ShouldEqual, 2)
				})
			})
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	convey.Convey("Given a hub with three subscribers, one of them dead", t, func() {
		hub := ws.NewHub()

		alive1 := &fakeConn{}
		alive2 := &fakeConn{}
		dead := &fakeConn{failNext: true}

		hub.Subscribe(alive1)
		hub.Subscribe(alive2)
		hub.Subscribe(dead)
		convey.So(hub.Count(), convey.ShouldEqual, 3)

		convey.Convey("When broadcasting an update", func() {
			delivered := hub.Broadcast(testUpdate())

			convey.Convey("Then exactly two deliveries should succeed", func() {
				convey.So(delivered, convey.ShouldEqual, 2)
				convey.So(alive1.writeCount(), convey.ShouldEqual, 1)
				convey.So(alive2.writeCount(), convey.ShouldEqual, 1)
			})

			convey.Convey("Then the dead subscriber should be pruned", func() {
				convey.So(hub.Count(), convey.ShouldEqual, 2)
				convey.So(dead.closed, convey.ShouldBeTrue)
			})

			convey.Convey("And a second broadcast only reaches the survivors", func() {
				delivered := hub.Broadcast(testUpdate())
				convey.So(delivered, convey.ShouldEqual, 2)
				convey.So(hub.Count(), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestHubBroadcastPayload(t *testing.T) {
	convey.Convey("Given a hub with one subscriber", t, func() {
		hub := ws.NewHub()
		conn := &fakeConn{}
		hub.Subscribe(conn)

		convey.Convey("When broadcasting", func() {
			hub.Broadcast(testUpdate())

			convey.Convey("Then the payload should be the typed update", func() {
				convey.So(conn.writeCount(), convey.ShouldEqual, 1)
				update, ok := conn.writes[0].(model.StatusUpdate)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(update.Type, convey.ShouldEqual, model.UpdateTypeTraining)
				convey.So(update.Progress, convey.ShouldEqual, 60.0)
			})
		})
	})
}

func TestHubCloseAll(t *testing.T) {
	convey.Convey("Given a hub with subscribers", t, func() {
		hub := ws.NewHub()
		a := &fakeConn{}
		b := &fakeConn{}
		hub.Subscribe(a)
		hub.Subscribe(b)

		convey.Convey("When closing all", func() {
			hub.CloseAll()

			convey.Convey("Then the registry should be empty and connections closed", func() {
				convey.So(hub.Count(), convey.ShouldEqual, 0)
				convey.So(a.closed, convey.ShouldBeTrue)
				convey.So(b.closed, convey.ShouldBeTrue)
			})
		})
	})
}
