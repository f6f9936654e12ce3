package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRedisLocker(t *testing.T) {
	Convey("Given a locker on a miniredis server", t, func() {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		ctx := context.Background()
		l := NewRedisLocker(rdb, WithTTL(time.Minute))

		Convey("When a key is acquired", func() {
			release, err := l.Acquire(ctx, "project:42")
			So(err, ShouldBeNil)

			Convey("Then the prefixed key exists with a TTL", func() {
				So(mr.Exists("lock:project:42"), ShouldBeTrue)
				So(mr.TTL("lock:project:42"), ShouldEqual, time.Minute)
			})

			Convey("Then a second acquire fails with ErrNotObtained", func() {
				_, err := l.Acquire(ctx, "project:42")
				So(errors.Is(err, ErrNotObtained), ShouldBeTrue)
			})

			Convey("Then other keys are independent", func() {
				rel, err := l.Acquire(ctx, "project:43")
				So(err, ShouldBeNil)
				rel()
			})

			Convey("Then releasing frees the key", func() {
				release()
				So(mr.Exists("lock:project:42"), ShouldBeFalse)

				again, err := l.Acquire(ctx, "project:42")
				So(err, ShouldBeNil)
				again()
			})

			Convey("Then an expired lease can be taken over and released twice safely", func() {
				mr.FastForward(2 * time.Minute)
				rel, err := l.Acquire(ctx, "project:42")
				So(err, ShouldBeNil)
				So(release, ShouldNotPanic)
				So(mr.Exists("lock:project:42"), ShouldBeTrue)
				rel()
			})
		})

		Convey("When the server is down", func() {
			mr.Close()
			_, err := l.Acquire(ctx, "project:1")

			Convey("Then the error is not a contention error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrNotObtained), ShouldBeFalse)
			})
		})
	})
}

func TestNewRedisClient(t *testing.T) {
	Convey("Given a reachable and an unreachable address", t, func() {
		mr := miniredis.RunT(t)

		Convey("Then only the reachable one connects", func() {
			rdb, err := NewRedisClient(context.Background(), mr.Addr())
			So(err, ShouldBeNil)
			So(rdb.Close(), ShouldBeNil)

			addr := mr.Addr()
			mr.Close()
			_, err = NewRedisClient(context.Background(), addr)
			So(err, ShouldNotBeNil)
		})
	})
}
