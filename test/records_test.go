package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/2beens/liftrecords/internal/liftlog"
	"github.com/2beens/liftrecords/internal/records"

	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) request(method, path string, body, out any, wantStatus int) {
	s.T().Helper()

	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reqBody = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequest(method, serverEndpoint+path, reqBody)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+testServiceToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	require.Equal(s.T(), wantStatus, resp.StatusCode, string(respBytes))

	if out != nil {
		require.NoError(s.T(), json.Unmarshal(respBytes, out))
	}
}

func (s *IntegrationTestSuite) newExercise(name string, exerciseType records.ExerciseType) records.Exercise {
	s.T().Helper()
	var exercise records.Exercise
	s.request(http.MethodPost, "/exercises", liftlog.NewExerciseParams{Name: name, Type: exerciseType}, &exercise, http.StatusCreated)
	return exercise
}

func (s *IntegrationTestSuite) logLift(userID, exerciseID int64, loggedAt time.Time, sets ...liftlog.SetParams) records.Entry {
	s.T().Helper()
	var entry records.Entry
	s.request(http.MethodPost, "/liftlogs", liftlog.NewEntryParams{
		UserID:     userID,
		ExerciseID: exerciseID,
		LoggedAt:   loggedAt,
		Sets:       sets,
	}, &entry, http.StatusCreated)
	return entry
}

func testDay(d int) time.Time {
	return time.Date(2024, time.March, d, 17, 0, 0, 0, time.UTC)
}

// chainHeads counts, per record slot, the rows no other row links to.
func (s *IntegrationTestSuite) chainHeads(userID, exerciseID int64) map[string]int {
	s.T().Helper()
	rows, err := s.DB.Query(`
		SELECT pr.category, pr.reps, pr.weight, count(*)
		FROM personal_record pr
		WHERE pr.user_id = $1 AND pr.exercise_id = $2
		  AND NOT EXISTS (SELECT 1 FROM personal_record n WHERE n.previous_id = pr.id)
		GROUP BY pr.category, pr.reps, pr.weight`,
		userID, exerciseID,
	)
	require.NoError(s.T(), err)
	defer rows.Close()

	heads := make(map[string]int)
	for rows.Next() {
		var (
			category string
			reps     int
			weight   float64
			count    int
		)
		require.NoError(s.T(), rows.Scan(&category, &reps, &weight, &count))
		heads[fmt.Sprintf("%s/%d/%.2f", category, reps, weight)] = count
	}
	require.NoError(s.T(), rows.Err())
	return heads
}

func (s *IntegrationTestSuite) TestLiftLogLifecycle() {
	squat := s.newExercise("Back squat", records.ExerciseTypeRegular)

	e1 := s.logLift(1, squat.ID, testDay(1), liftlog.SetParams{Weight: 100, Reps: 5})
	e2 := s.logLift(1, squat.ID, testDay(8), liftlog.SetParams{Weight: 105, Reps: 5})
	e3 := s.logLift(1, squat.ID, testDay(15), liftlog.SetParams{Weight: 100, Reps: 5})
	s.True(e1.IsPR)
	s.True(e2.IsPR)
	s.False(e3.IsPR)

	var chain []records.Record
	s.request(http.MethodGet, fmt.Sprintf("/records/1/%d/chain?category=rep_specific&reps=5", squat.ID), nil, &chain, http.StatusOK)
	s.Require().Len(chain, 2)
	s.Equal(e2.ID, chain[0].EntryID)
	s.Equal(e1.ID, chain[1].EntryID)
	s.Require().NotNil(chain[0].PreviousID)
	s.Equal(chain[1].ID, *chain[0].PreviousID)

	// backdated heavier entry takes every record
	e0 := s.logLift(1, squat.ID, testDay(0), liftlog.SetParams{Weight: 120, Reps: 5})
	s.True(e0.IsPR)

	var isPR bool
	for _, id := range []int64{e1.ID, e2.ID, e3.ID} {
		s.Require().NoError(s.DB.QueryRow(`SELECT is_pr FROM lift_log WHERE id = $1`, id).Scan(&isPR))
		s.False(isPR, "lift log %d", id)
	}

	var current []records.Record
	s.request(http.MethodGet, fmt.Sprintf("/records/1/%d", squat.ID), nil, &current, http.StatusOK)
	s.NotEmpty(current)
	for _, r := range current {
		s.Equal(e0.ID, r.EntryID, "%s", r.Key)
	}

	// deleting it brings the previous holders back
	s.request(http.MethodDelete, fmt.Sprintf("/liftlogs/%d", e0.ID), nil, nil, http.StatusOK)
	s.request(http.MethodGet, fmt.Sprintf("/liftlogs/%d", e0.ID), nil, nil, http.StatusNotFound)

	var entry records.Entry
	s.request(http.MethodGet, fmt.Sprintf("/liftlogs/%d", e2.ID), nil, &entry, http.StatusOK)
	s.True(entry.IsPR)

	for key, count := range s.chainHeads(1, squat.ID) {
		s.Equal(1, count, key)
	}

	var auditRows int
	s.Require().NoError(s.DB.QueryRow(`SELECT count(*) FROM personal_record_audit WHERE exercise_id = $1`, squat.ID).Scan(&auditRows))
	var audit []records.AuditRecord
	s.request(http.MethodGet, fmt.Sprintf("/audit/exercises/%d", squat.ID), nil, &audit, http.StatusOK)
	s.Len(audit, auditRows)
	// 3 single creates, 4 entries after the backdated one, 3 after the delete
	s.Equal(10, auditRows)
}

func (s *IntegrationTestSuite) TestUpdateAndValidation() {
	bench := s.newExercise("Bench press", records.ExerciseTypeRegular)

	e1 := s.logLift(2, bench.ID, testDay(1), liftlog.SetParams{Weight: 80, Reps: 8})
	e2 := s.logLift(2, bench.ID, testDay(2), liftlog.SetParams{Weight: 85, Reps: 8})
	s.True(e2.IsPR)

	var updated records.Entry
	s.request(http.MethodPut, fmt.Sprintf("/liftlogs/%d", e2.ID), liftlog.UpdateEntryParams{
		LoggedAt: testDay(2),
		Sets:     []liftlog.SetParams{{Weight: 80, Reps: 6}},
	}, &updated, http.StatusOK)
	s.False(updated.IsPR)

	var cl struct {
		IsPR       bool                `json:"isPr"`
		Rejections []records.Rejection `json:"rejections"`
	}
	s.request(http.MethodGet, fmt.Sprintf("/liftlogs/%d/classification", e2.ID), nil, &cl, http.StatusOK)
	s.False(cl.IsPR)
	s.Require().NotEmpty(cl.Rejections)
	for _, r := range cl.Rejections {
		if r.Category == records.CategoryHypertrophy {
			s.Equal(e1.ID, r.BlockingEntryID)
			s.Equal("6 reps at 80.00 do not beat 8 reps from entry #"+fmt.Sprint(e1.ID), r.Reason)
		}
	}

	s.request(http.MethodPost, "/liftlogs", liftlog.NewEntryParams{
		UserID:     2,
		ExerciseID: bench.ID,
		LoggedAt:   testDay(3),
	}, nil, http.StatusBadRequest)

	s.request(http.MethodPost, "/liftlogs", liftlog.NewEntryParams{
		UserID:     2,
		ExerciseID: bench.ID + 1000,
		LoggedAt:   testDay(3),
		Sets:       []liftlog.SetParams{{Weight: 80, Reps: 8}},
	}, nil, http.StatusNotFound)
}

func (s *IntegrationTestSuite) TestDeleteAndRestoreEntry() {
	ctx := context.Background()
	row := s.newExercise("Barbell row", records.ExerciseTypeRegular)
	entry := s.logLift(4, row.ID, testDay(1), liftlog.SetParams{Weight: 70, Reps: 8})

	s.Require().NoError(s.store.DeleteEntry(ctx, entry.ID))
	s.ErrorIs(s.store.DeleteEntry(ctx, entry.ID), records.ErrEntryNotFound)

	s.Require().NoError(s.store.RestoreEntry(ctx, entry.ID))
	s.ErrorIs(s.store.RestoreEntry(ctx, entry.ID), records.ErrEntryNotFound)

	restored, err := s.store.GetEntry(ctx, entry.ID)
	s.Require().NoError(err)
	s.False(restored.IsDeleted())
	s.True(restored.IsPR)
}

func (s *IntegrationTestSuite) TestIneligibleExerciseAndRebuild() {
	ctx := context.Background()
	pullups := s.newExercise("Pull ups", records.ExerciseTypeWeightedBodyweight)

	for d := 1; d <= 4; d++ {
		entry := s.logLift(3, pullups.ID, testDay(d), liftlog.SetParams{Weight: float64(5 * d), Reps: 6})
		s.True(entry.IsPR)
	}

	var prRows int
	s.Require().NoError(s.DB.QueryRow(`SELECT count(*) FROM personal_record WHERE exercise_id = $1`, pullups.ID).Scan(&prRows))
	s.Positive(prRows)

	// plain bodyweight from now on, and the whole history is rebuilt
	s.Require().NoError(s.store.UpdateExerciseType(ctx, pullups.ID, records.ExerciseTypeBodyweight))

	// the server cached the old type, its next pass still sees the new one
	heavier := s.logLift(3, pullups.ID, testDay(5), liftlog.SetParams{Weight: 50, Reps: 6})
	s.False(heavier.IsPR)

	service := records.NewService(s.store, records.DefaultConfig(), nil)
	rebuilt, err := service.RebuildExercise(ctx, s.store, pullups.ID, 2)
	s.Require().NoError(err)
	s.Equal(1, rebuilt)

	s.Require().NoError(s.DB.QueryRow(`SELECT count(*) FROM personal_record WHERE exercise_id = $1`, pullups.ID).Scan(&prRows))
	s.Zero(prRows)
	var prEntries int
	s.Require().NoError(s.DB.QueryRow(`SELECT count(*) FROM lift_log WHERE exercise_id = $1 AND is_pr`, pullups.ID).Scan(&prEntries))
	s.Zero(prEntries)
}

func (s *IntegrationTestSuite) TestConcurrentWritesKeepSingleChainHead() {
	deadlift := s.newExercise("Deadlift", records.ExerciseTypeRegular)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := json.Marshal(liftlog.NewEntryParams{
				UserID:     4,
				ExerciseID: deadlift.ID,
				LoggedAt:   testDay(1 + i%6),
				Sets:       []liftlog.SetParams{{Weight: float64(150 + 5*i), Reps: 1 + i%5}},
			})
			if err != nil {
				s.T().Error(err)
				return
			}
			req, err := http.NewRequest(http.MethodPost, serverEndpoint+"/liftlogs", bytes.NewReader(body))
			if err != nil {
				s.T().Error(err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+testServiceToken)
			resp, err := s.httpClient.Do(req)
			if err != nil {
				s.T().Error(err)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				s.T().Errorf("create lift log: status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	heads := s.chainHeads(4, deadlift.ID)
	s.NotEmpty(heads)
	for key, count := range heads {
		s.Equal(1, count, key)
	}

	// a rebuild from scratch ends up with the same current holders
	var before []records.Record
	s.request(http.MethodGet, fmt.Sprintf("/records/4/%d", deadlift.ID), nil, &before, http.StatusOK)

	service := records.NewService(s.store, records.DefaultConfig(), nil)
	s.Require().NoError(service.Rebuild(context.Background(), records.TimelineKey{UserID: 4, ExerciseID: deadlift.ID}))

	var after []records.Record
	s.request(http.MethodGet, fmt.Sprintf("/records/4/%d", deadlift.ID), nil, &after, http.StatusOK)
	s.Require().Len(after, len(before))
	for i := range before {
		s.Equal(before[i].Key, after[i].Key)
		s.Equal(before[i].EntryID, after[i].EntryID)
		s.InDelta(before[i].Value, after[i].Value, 1e-9)
	}
}
