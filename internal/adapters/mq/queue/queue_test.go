package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/leadscore/internal/adapters/mq/queue"
	"github.com/okian/leadscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var asOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func job(id string) model.ScoringJob { return model.ScoringJob{CompanyID: id, AsOf: asOf} }

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)
		So(q.Len(), ShouldEqual, 0)

		Convey("When two jobs are enqueued", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Enqueue(ctx, job("b")), ShouldBeNil)

			Convey("Then a third is rejected as full", func() {
				err := q.Enqueue(ctx, job("c"))
				So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then jobs come out in order", func() {
				So((<-q.Jobs()).CompanyID, ShouldEqual, "a")
				So((<-q.Jobs()).CompanyID, ShouldEqual, "b")
				So(q.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed with a job buffered", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then new jobs are refused but buffered ones drain", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, job("b")), queue.ErrClosed), ShouldBeTrue)

				var got []string
				for j := range q.Jobs() {
					got = append(got, j.CompanyID)
				}
				So(got, ShouldResemble, []string{"a"})
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(q.Enqueue(cctx, job("a")), context.Canceled), ShouldBeTrue)
		})
	})
}

func TestInMemoryQueueConcurrent(t *testing.T) {
	Convey("Given producers and a consumer sharing a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		const producers, perProducer = 4, 50

		var consumed []string
		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := range q.Jobs() {
				consumed = append(consumed, j.CompanyID)
			}
		}()

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					for q.Enqueue(context.Background(), job(fmt.Sprintf("c-%d-%d", p, i))) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)
		<-done

		So(consumed, ShouldHaveLength, producers*perProducer)
	})
}
