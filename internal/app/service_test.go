package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/fulbito/internal/app"
	"github.com/okian/fulbito/internal/adapters/repository"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// roster returns n players with IDs 1..n and distinct ratings.
func roster(n int) []model.Player {
	out := make([]model.Player, n)
	for i := range out {
		out[i] = model.Player{ID: int64(i + 1), Name: fmt.Sprintf("p%d", i+1)}.Rated(float64(50 + 3*i))
	}
	return out
}

func waitTerminal(svc *service.Service, id string) repository.Job {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(context.Background(), id)
		if err == nil && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := svc.Job(context.Background(), id)
	return job
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["maxCombinations"], ShouldEqual, balance.DefaultMaxCombinations)
			So(stats["defaultTopN"], ShouldEqual, balance.DefaultTopN)
			So(svc.TeamSizes(), ShouldResemble, balance.DefaultTeamSizes)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
			service.WithMaxCombinations(1000),
			service.WithTeamSizes(2, 3),
			service.WithTopN(5),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 500)
			So(stats["dedupeSize"], ShouldEqual, 250)
			So(stats["maxCombinations"], ShouldEqual, 1000)
			So(svc.TeamSizes(), ShouldResemble, []int{2, 3})
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is used before Start", func() {
			_, err := svc.SubmitBalance(ctx, balance.Request{Roster: roster(4), TeamSize: 2})

			Convey("Then it reports that it is not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("And stopping it marks it stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Balance(t *testing.T) {
	Convey("Given a started service accepting teams of two", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithTeamSizes(2, 5, 11),
			service.WithMaxCombinations(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		Convey("When balancing four players synchronously", func() {
			players := []model.Player{
				model.Player{ID: 1, Name: "A"}.Rated(90),
				model.Player{ID: 2, Name: "B"}.Rated(80),
				model.Player{ID: 3, Name: "C"}.Rated(70),
				model.Player{ID: 4, Name: "D"}.Rated(60),
			}
			res, err := svc.Balance(ctx, balance.Request{Roster: players, TeamSize: 2})

			Convey("Then the default TopN options come back best first", func() {
				So(err, ShouldBeNil)
				So(res.Splits, ShouldHaveLength, 3)
				So(res.Splits[0].Diff, ShouldEqual, 0)
				So(res.Splits[1].Diff, ShouldEqual, 20)
				So(res.Splits[2].Diff, ShouldEqual, 40)
				So(res.Partial, ShouldBeFalse)
			})
		})

		Convey("When a request is invalid", func() {
			_, sizeErr := svc.SubmitBalance(ctx, balance.Request{Roster: roster(3), TeamSize: 2})
			unrated := roster(4)
			unrated[2].Rating = nil
			_, ratingErr := svc.SubmitBalance(ctx, balance.Request{Roster: unrated, TeamSize: 2})
			_, teamErr := svc.SubmitBalance(ctx, balance.Request{Roster: roster(8), TeamSize: 4})

			Convey("Then it is rejected before anything is queued", func() {
				var rse *balance.RosterSizeError
				So(errors.As(sizeErr, &rse), ShouldBeTrue)
				So(rse.Expected, ShouldEqual, 4)
				So(rse.Actual, ShouldEqual, 3)

				var pre *balance.PlayerRatingError
				So(errors.As(ratingErr, &pre), ShouldBeTrue)
				So(pre.Players, ShouldHaveLength, 1)
				So(pre.Players[0].ID, ShouldEqual, 3)

				So(errors.Is(teamErr, balance.ErrUnsupportedTeamSize), ShouldBeTrue)

				jobs, _ := svc.GetStats()["jobs"].(map[string]int)
				So(jobs, ShouldBeEmpty)
			})
		})

		Convey("When a job is submitted asynchronously", func() {
			id, err := svc.SubmitBalance(ctx, balance.Request{Roster: roster(10), TeamSize: 5, TopN: 2})
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then it completes with the requested number of options", func() {
				job := waitTerminal(svc, id)
				So(job.Status, ShouldEqual, model.JobDone)
				So(job.Err, ShouldBeNil)
				So(job.Result.Splits, ShouldHaveLength, 2)
				So(job.Result.Unique, ShouldEqual, 126)
				So(job.RosterSize, ShouldEqual, 10)
				So(job.TeamSize, ShouldEqual, 5)
			})
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Job(ctx, "missing")
			_, cancelErr := svc.CancelJob(ctx, "missing")

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(cancelErr, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a large job is cancelled", func() {
			id, err := svc.SubmitBalance(ctx, balance.Request{Roster: roster(22), TeamSize: 11})
			So(err, ShouldBeNil)
			_, err = svc.CancelJob(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then it ends cancelled", func() {
				job := waitTerminal(svc, id)
				So(job.Status, ShouldEqual, model.JobCancelled)
				So(errors.Is(job.Err, repository.ErrJobCancelled), ShouldBeTrue)
			})
		})

		Convey("When the caller gives up waiting", func() {
			short, stop := context.WithTimeout(ctx, time.Millisecond)
			defer stop()
			_, err := svc.Balance(short, balance.Request{Roster: roster(22), TeamSize: 11})

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service with one worker and a one-slot queue", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithMaxCombinations(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When more large jobs are submitted than it can hold", func() {
			var (
				ids     []string
				lastErr error
			)
			for i := 0; i < 10; i++ {
				id, err := svc.SubmitBalance(ctx, balance.Request{Roster: roster(22), TeamSize: 11})
				if err != nil {
					lastErr = err
					break
				}
				ids = append(ids, id)
			}
			for _, id := range ids {
				_, _ = svc.CancelJob(ctx, id)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then submission fails with backpressure", func() {
				So(errors.Is(lastErr, service.ErrBackpressure), ShouldBeTrue)
				// one running, one held by the dequeue loop, one buffered
				So(len(ids), ShouldBeLessThanOrEqualTo, 3)
			})
		})
	})
}

// recordingLogger keeps warnings and the names it was derived under.
type recordingLogger struct {
	mu    sync.Mutex
	names []string
	warns []string
}

func (l *recordingLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *recordingLogger) Error(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Debug(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Fatal(context.Context, string, ...logger.Field) {}

func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Named(name string) logger.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	return l
}

func TestService_BalancerLogging(t *testing.T) {
	Convey("Given a service with its own logger and a low combination ceiling", t, func() {
		rec := &recordingLogger{}
		svc := service.New(
			service.WithLogger(rec),
			service.WithWorkerCount(1),
			service.WithTeamSizes(5),
			service.WithMaxCombinations(10),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		Convey("When a search is cut short", func() {
			res, err := svc.Balance(ctx, balance.Request{Roster: roster(10), TeamSize: 5, TopN: 1})
			So(err, ShouldBeNil)
			So(res.Partial, ShouldBeTrue)

			Convey("Then the warning reaches the service logger", func() {
				rec.mu.Lock()
				defer rec.mu.Unlock()
				So(rec.names, ShouldContain, "balancer")
				So(rec.warns, ShouldContain, "combination ceiling reached, results may be incomplete")
			})
		})
	})
}

func TestService_StopWhileWaiting(t *testing.T) {
	Convey("Given a caller waiting on a long balance job", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithTeamSizes(13),
			service.WithMaxCombinations(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Balance(ctx, balance.Request{Roster: roster(26), TeamSize: 13, TopN: 1})
			done <- err
		}()

		running := func() bool {
			jobs, _ := svc.GetStats()["jobs"].(map[string]int)
			return jobs[string(model.JobRunning)] == 1
		}
		for deadline := time.Now().Add(10 * time.Second); !running() && time.Now().Before(deadline); {
			time.Sleep(time.Millisecond)
		}
		So(running(), ShouldBeTrue)

		Convey("When the service stops underneath it", func() {
			stopCtx, stop := context.WithTimeout(ctx, 20*time.Millisecond)
			defer stop()
			_ = svc.Stop(stopCtx)

			Convey("Then the caller sees the job cancelled, not a stopped service", func() {
				var err error
				select {
				case err = <-done:
				case <-ctx.Done():
					err = ctx.Err()
				}
				So(errors.Is(err, repository.ErrJobCancelled), ShouldBeTrue)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeFalse)
			})
		})
	})
}
