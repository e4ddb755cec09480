package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/fulbito/internal/adapters/http/api"
	"github.com/okian/fulbito/internal/adapters/repository"
	service "github.com/okian/fulbito/internal/app"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/types"
	"github.com/okian/fulbito/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// failingDeps overrides the balance operations of a real service.
type failingDeps struct {
	api.Dependencies
	err error
}

func (f *failingDeps) SubmitBalance(context.Context, balance.Request) (string, error) {
	return "", f.err
}

func (f *failingDeps) Balance(context.Context, balance.Request) (balance.Result, error) {
	return balance.Result{}, f.err
}

func (f *failingDeps) GetStats() map[string]interface{} {
	panic("stats exploded")
}

func newTestService(ctx context.Context) *service.Service {
	store, err := repository.OpenSQL(ctx, repository.DriverSQLite, ":memory:")
	So(err, ShouldBeNil)
	svc := service.New(
		service.WithWorkerCount(2),
		service.WithTeamSizes(2, 5),
		service.WithMinDuoGames(1),
		service.WithMaxLeaderboardLimit(50),
		service.WithStore(store),
	)
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

const fourPlayers = `{"players":[
	{"id":1,"name":"A","rating":90},
	{"id":2,"name":"B","rating":80},
	{"id":3,"name":"C","rating":70},
	{"id":4,"name":"D","rating":60}],"team_size":2}`

func TestBalanceEndpoints(t *testing.T) {
	Convey("Given an API router over a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := newTestService(ctx)
		defer func() { _ = svc.Stop(context.Background()) }()
		h := api.NewServer(svc).Router(ctx)

		Convey("When POST /balance is called with a valid roster", func() {
			w := do(h, http.MethodPost, "/balance", fourPlayers)

			Convey("Then the ranked options are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[types.BalanceResponse](w)
				So(res.Options, ShouldHaveLength, 3)
				So(res.Options[0].Rank, ShouldEqual, 1)
				So(res.Options[0].Diff, ShouldEqual, 0)
				So(res.Options[0].TeamA.Sum, ShouldEqual, 150)
				So(res.Options[2].Diff, ShouldEqual, 40)
				So(res.Partial, ShouldBeFalse)
			})
		})

		Convey("When the roster has the wrong size", func() {
			w := do(h, http.MethodPost, "/balance", `{"players":[{"id":1,"name":"A","rating":1}],"team_size":2}`)

			Convey("Then 400 invalid_roster_size is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "invalid_roster_size")
			})
		})

		Convey("When players have no rating", func() {
			body := `{"players":[
				{"id":1,"name":"A","rating":90},
				{"id":2,"name":"B","rating":null},
				{"id":3,"name":"C","rating":70},
				{"id":4,"name":"D"}],"team_size":2}`
			w := do(h, http.MethodPost, "/balance", body)

			Convey("Then every unrated player is listed", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				resp := decode[types.ErrorResponse](w)
				So(resp.Code, ShouldEqual, "invalid_player_rating")
				So(resp.Players, ShouldResemble, []int64{2, 4})
			})
		})

		Convey("When the ratings add up past the largest float", func() {
			w := do(h, http.MethodPost, "/balance", `{"players":[
				{"id":1,"name":"A","rating":1.7976931348623157e308},
				{"id":2,"name":"B","rating":1.7976931348623157e308},
				{"id":3,"name":"C","rating":1},
				{"id":4,"name":"D","rating":0}],"team_size":2}`)

			Convey("Then 400 invalid_player_rating is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "invalid_player_rating")
			})
		})

		Convey("When the team size is not supported", func() {
			body := `{"players":[
				{"id":1,"rating":1},{"id":2,"rating":1},{"id":3,"rating":1},
				{"id":4,"rating":1},{"id":5,"rating":1},{"id":6,"rating":1}],"team_size":3}`
			w := do(h, http.MethodPost, "/balance", body)

			Convey("Then 400 unsupported_team_size is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "unsupported_team_size")
			})
		})

		Convey("When the body is not valid JSON", func() {
			w := do(h, http.MethodPost, "/balance", `{"players":`)

			Convey("Then 400 bad_request is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When a job is submitted asynchronously", func() {
			w := do(h, http.MethodPost, "/balance?async=true", fourPlayers)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			job := decode[types.JobResponse](w)
			So(job.JobID, ShouldNotBeEmpty)
			So(w.Header().Get("Location"), ShouldEqual, "/balance/jobs/"+job.JobID)

			Convey("Then polling eventually returns the result", func() {
				var got types.JobResponse
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					pw := do(h, http.MethodGet, "/balance/jobs/"+job.JobID, "")
					So(pw.Code, ShouldEqual, http.StatusOK)
					got = decode[types.JobResponse](pw)
					if got.Status == "done" {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(got.Status, ShouldEqual, "done")
				So(got.Result, ShouldNotBeNil)
				So(got.Result.Options, ShouldHaveLength, 3)
				So(got.FinishedAt, ShouldNotBeNil)
			})

			Convey("And cancelling a finished job leaves it unchanged", func() {
				time.Sleep(50 * time.Millisecond)
				cw := do(h, http.MethodDelete, "/balance/jobs/"+job.JobID, "")
				So(cw.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When an unknown job is requested", func() {
			w := do(h, http.MethodGet, "/balance/jobs/nope", "")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When balancing stored players", func() {
			var ids []string
			for i, r := range []int{90, 80, 70, 60} {
				w := do(h, http.MethodPost, "/players", fmt.Sprintf(`{"name":"p%d","rating":%d}`, i, r))
				So(w.Code, ShouldEqual, http.StatusCreated)
				ids = append(ids, fmt.Sprint(decode[types.Player](w).ID))
			}
			body := `{"player_ids":[` + strings.Join(ids, ",") + `],"team_size":2,"top_n":1}`
			w := do(h, http.MethodPost, "/balance/players", body)
			missing := do(h, http.MethodPost, "/balance/players", `{"player_ids":[1,2,3,404],"team_size":2}`)

			Convey("Then the stored roster is balanced", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BalanceResponse](w).Options, ShouldHaveLength, 1)
			})

			Convey("And unknown ids are reported", func() {
				So(missing.Code, ShouldEqual, http.StatusBadRequest)
				resp := decode[types.ErrorResponse](missing)
				So(resp.Code, ShouldEqual, "unknown_players")
				So(resp.Players, ShouldResemble, []int64{404})
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given an API whose balancer is overloaded", t, func() {
		ctx := context.Background()
		deps := &failingDeps{Dependencies: service.New(), err: fmt.Errorf("submit: %w", service.ErrBackpressure)}
		h := api.NewServer(deps).Router(ctx)

		Convey("Then balancing returns 429", func() {
			w := do(h, http.MethodPost, "/balance", fourPlayers)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "backpressure")

			w = do(h, http.MethodPost, "/balance?async=1", fourPlayers)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("Then an unexpected error is a 500", func() {
			deps.err = errors.New("boom")
			w := do(h, http.MethodPost, "/balance", fourPlayers)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[types.ErrorResponse](w).Code, ShouldEqual, "internal_error")
		})

		Convey("Then a panicking handler is recovered", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Then store-backed routes report the missing store", func() {
			w := do(h, http.MethodGet, "/players", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given the error helpers", t, func() {
		Convey("Then kinds and causes are both reachable", func() {
			cause := errors.New("bad json")
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: bad json")
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}

func TestMatchAndStatsEndpoints(t *testing.T) {
	Convey("Given an API with four stored players", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := newTestService(ctx)
		defer func() { _ = svc.Stop(context.Background()) }()
		h := api.NewServer(svc, api.WithAllowedOrigins("https://fulbito.example")).Router(ctx)

		for i, r := range []int{90, 80, 70, 60} {
			w := do(h, http.MethodPost, "/players", fmt.Sprintf(`{"name":"p%d","rating":%d}`, i+1, r))
			So(w.Code, ShouldEqual, http.StatusCreated)
		}
		match := `{"played_at":"2024-05-01T20:00:00Z","team_a":[1,4],"team_b":[2,3],"score_a":2,"score_b":1}`

		Convey("When a match is posted twice with one idempotency key", func() {
			first := do(h, http.MethodPost, "/matches", match, api.IdempotencyHeader, "abc")
			second := do(h, http.MethodPost, "/matches", match, api.IdempotencyHeader, "abc")

			Convey("Then the replay returns the original id", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				a := decode[types.SaveMatchResponse](first)
				b := decode[types.SaveMatchResponse](second)
				So(b.Duplicate, ShouldBeTrue)
				So(b.MatchID, ShouldEqual, a.MatchID)

				list := do(h, http.MethodGet, "/matches", "")
				So(decode[[]types.Match](list), ShouldHaveLength, 1)
			})
		})

		Convey("When a match names the same player on both sides", func() {
			w := do(h, http.MethodPost, "/matches", `{"team_a":[1],"team_b":[1],"score_a":1,"score_b":0}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When results exist", func() {
			So(do(h, http.MethodPost, "/matches", match).Code, ShouldEqual, http.StatusCreated)

			Convey("Then the leaderboard ranks winners first", func() {
				w := do(h, http.MethodGet, "/leaderboard?sort=win_rate&order=desc&limit=2", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rows := decode[[]types.LeaderboardEntry](w)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].Wins, ShouldEqual, 1)
				So(*rows[0].WinRate, ShouldEqual, 100)
			})

			Convey("And bad leaderboard queries are rejected", func() {
				So(do(h, http.MethodGet, "/leaderboard?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/leaderboard?limit=51", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/leaderboard?order=up", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/leaderboard?sort=height", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And duos can be filtered by player", func() {
				w := do(h, http.MethodGet, "/duos?min_games=1&player_id=1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[types.DuosResponse](w)
				So(res.Duos, ShouldHaveLength, 1)
				So(res.Duos[0].Player2ID, ShouldEqual, 4)
				So(res.Best, ShouldNotBeNil)
				So(res.Best.WinRate, ShouldEqual, 100)
			})

			Convey("And a deleted match is gone", func() {
				So(do(h, http.MethodDelete, "/matches/1", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/matches/1", "").Code, ShouldEqual, http.StatusNotFound)
				So(do(h, http.MethodDelete, "/matches/zero", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a stored match is edited", func() {
			So(do(h, http.MethodPost, "/matches", match).Code, ShouldEqual, http.StatusCreated)
			edit := `{"played_at":"2024-05-02T20:00:00Z","team_a":[3,1],"team_b":[2,4],"score_a":0,"score_b":3,"replay_url":"https://video.example/m1"}`
			w := do(h, http.MethodPut, "/matches/1", edit)

			Convey("Then the replacement is returned and listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				m := decode[types.Match](w)
				So(m.ID, ShouldEqual, 1)
				So(m.TeamA, ShouldResemble, []int64{1, 3})
				So(m.ScoreB, ShouldEqual, 3)
				So(m.ReplayURL, ShouldEqual, "https://video.example/m1")

				list := decode[[]types.Match](do(h, http.MethodGet, "/matches", ""))
				So(list, ShouldHaveLength, 1)
				So(list[0].TeamB, ShouldResemble, []int64{2, 4})
				So(list[0].ReplayURL, ShouldEqual, "https://video.example/m1")
			})

			Convey("And bad edits are rejected", func() {
				So(do(h, http.MethodPut, "/matches/9", edit).Code, ShouldEqual, http.StatusNotFound)
				So(do(h, http.MethodPut, "/matches/1", `{"team_a":[1],"team_b":[2],"score_a":1,"score_b":0}`).Code,
					ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodPut, "/matches/1", strings.Replace(edit, "https://", "ftp://", 1)).Code,
					ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodPut, "/matches/1", strings.Replace(edit, "[2,4]", "[2,44]", 1)).Code,
					ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When several matches are deleted at once", func() {
			for range 3 {
				So(do(h, http.MethodPost, "/matches", match).Code, ShouldEqual, http.StatusCreated)
			}
			w := do(h, http.MethodPost, "/matches/bulk-delete", `{"ids":[1,3,42]}`)

			Convey("Then only existing matches are counted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.DeleteMatchesResponse](w).Deleted, ShouldEqual, 2)
				list := decode[[]types.Match](do(h, http.MethodGet, "/matches", ""))
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldEqual, 2)
			})

			Convey("And an empty id list is rejected", func() {
				So(do(h, http.MethodPost, "/matches/bulk-delete", `{"ids":[]}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the leaderboard asks for a minimum number of games", func() {
			So(do(h, http.MethodPost, "/matches", match).Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/matches",
				`{"played_at":"2024-05-03T20:00:00Z","team_a":[1],"team_b":[2],"score_a":1,"score_b":1}`).Code,
				ShouldEqual, http.StatusCreated)
			w := do(h, http.MethodGet, "/leaderboard?min_games=2", "")

			Convey("Then players below it are left out", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				rows := decode[[]types.LeaderboardEntry](w)
				So(rows, ShouldHaveLength, 2)
				for _, row := range rows {
					So(row.GamesPlayed, ShouldEqual, 2)
				}
				So(do(h, http.MethodGet, "/leaderboard?min_games=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a player is renamed", func() {
			w := do(h, http.MethodPatch, "/players/3", `{"name":"  Chino "}`)

			Convey("Then the name changes and the rating stays", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				p := decode[types.Player](w)
				So(p.Name, ShouldEqual, "Chino")
				So(*p.Rating, ShouldEqual, 70)
				So(do(h, http.MethodPatch, "/players/3", `{"name":" "}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodPatch, "/players/3", `{}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodPatch, "/players/3", `{"rating":"high"}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a player is deleted", func() {
			So(do(h, http.MethodPost, "/matches", match).Code, ShouldEqual, http.StatusCreated)
			w := do(h, http.MethodDelete, "/players/4", "")

			Convey("Then they leave the registry and their match rosters", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(decode[[]types.Player](do(h, http.MethodGet, "/players", "")), ShouldHaveLength, 3)
				list := decode[[]types.Match](do(h, http.MethodGet, "/matches", ""))
				So(list[0].TeamA, ShouldResemble, []int64{1})
				So(do(h, http.MethodDelete, "/players/4", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a rating is cleared", func() {
			w := do(h, http.MethodPatch, "/players/2", `{"rating":null}`)

			Convey("Then the player is returned unrated", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.Player](w).Rating, ShouldBeNil)
				So(do(h, http.MethodPatch, "/players/99", `{"rating":5}`).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a CORS preflight arrives from an allowed origin", func() {
			w := do(h, http.MethodOptions, "/matches", "",
				"Origin", "https://fulbito.example",
				"Access-Control-Request-Method", http.MethodPost,
				"Access-Control-Request-Headers", api.IdempotencyHeader,
			)

			Convey("Then it is allowed", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://fulbito.example")
			})
		})

		Convey("When operational endpoints are called", func() {
			stats := do(h, http.MethodGet, "/stats", "")
			health := do(h, http.MethodGet, "/healthz", "")

			Convey("Then they respond", func() {
				So(stats.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](stats)["started"], ShouldEqual, true)
				So(health.Code, ShouldEqual, http.StatusOK)
				So(health.Body.String(), ShouldContainSubstring, "fulbito_")
			})
		})
	})
}

func TestRegisterOnExternalRouter(t *testing.T) {
	Convey("Given a bare chi router", t, func() {
		r := chi.NewRouter()
		api.NewServer(service.New()).Register(context.Background(), r)

		Convey("Then the API routes are attached", func() {
			So(do(r, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(r, http.MethodGet, "/nope", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
