package queue_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/salle/internal/adapters/mq/queue"
	"github.com/okian/salle/internal/domain/model"
)

func change(i int) queue.Change {
	return queue.Change{ID: "c" + strconv.Itoa(i), Kind: model.ChangeBoutRecorded, EntityID: int64(i), At: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		So(q.Len(), ShouldEqual, 0)

		Convey("changes come out in order", func() {
			So(q.Enqueue(ctx, change(1)), ShouldBeNil)
			So(q.Enqueue(ctx, change(2)), ShouldBeNil)
			So(q.Len(), ShouldEqual, 2)

			out := q.Dequeue(ctx)
			So((<-out).ID, ShouldEqual, "c1")
			So((<-out).ID, ShouldEqual, "c2")
		})

		Convey("a full queue refuses without blocking", func() {
			So(q.Enqueue(ctx, change(1)), ShouldBeNil)
			So(q.Enqueue(ctx, change(2)), ShouldBeNil)
			So(errors.Is(q.Enqueue(ctx, change(3)), queue.ErrFull), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 2)
		})

		Convey("a cancelled context is refused", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, change(1)), context.Canceled), ShouldBeTrue)
		})

		Convey("closing drains pending changes then closes the channel", func() {
			So(q.Enqueue(ctx, change(1)), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(errors.Is(q.Enqueue(ctx, change(2)), queue.ErrClosed), ShouldBeTrue)

			out := q.Dequeue(ctx)
			So((<-out).ID, ShouldEqual, "c1")
			select {
			case _, ok := <-out:
				So(ok, ShouldBeFalse)
			case <-time.After(time.Second):
				So("dequeue channel still open", ShouldBeEmpty)
			}
			So(q.Close(), ShouldBeNil)
		})
	})
}

func TestInMemoryQueueConcurrent(t *testing.T) {
	Convey("Given producers and consumers sharing a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		const producers, each = 8, 50

		var got sync.Map
		var consumers sync.WaitGroup
		for range 4 {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for c := range q.Dequeue(ctx) {
					got.Store(c.ID, true)
				}
			}()
		}

		var wg sync.WaitGroup
		for p := range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range each {
					for q.Enqueue(ctx, change(p*each+j)) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)
		consumers.Wait()

		n := 0
		got.Range(func(_, _ any) bool { n++; return true })
		So(n, ShouldEqual, producers*each)
	})
}
