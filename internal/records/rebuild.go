package records

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type UserExercisesLister interface {
	ListUserExercises(ctx context.Context, userID int64) ([]int64, error)
}

type ExerciseUsersLister interface {
	ListExerciseUsers(ctx context.Context, exerciseID int64) ([]int64, error)
}

// RebuildUser rebuilds every timeline of a user, up to concurrency timelines
// at a time. Timelines are independent, the first failure stops the
// remaining ones. Returns the number of rebuilt timelines.
func (s *Service) RebuildUser(ctx context.Context, lister UserExercisesLister, userID int64, concurrency int) (int, error) {
	exerciseIDs, err := lister.ListUserExercises(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list exercises of user %d: %w", userID, err)
	}

	keys := make([]TimelineKey, 0, len(exerciseIDs))
	for _, exerciseID := range exerciseIDs {
		keys = append(keys, TimelineKey{UserID: userID, ExerciseID: exerciseID})
	}
	return s.rebuildAll(ctx, keys, concurrency)
}

// RebuildExercise rebuilds the timelines of all users of an exercise. It is
// the migration step after an exercise type change.
func (s *Service) RebuildExercise(ctx context.Context, lister ExerciseUsersLister, exerciseID int64, concurrency int) (int, error) {
	userIDs, err := lister.ListExerciseUsers(ctx, exerciseID)
	if err != nil {
		return 0, fmt.Errorf("list users of exercise %d: %w", exerciseID, err)
	}

	keys := make([]TimelineKey, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, TimelineKey{UserID: userID, ExerciseID: exerciseID})
	}
	return s.rebuildAll(ctx, keys, concurrency)
}

func (s *Service) rebuildAll(ctx context.Context, keys []TimelineKey, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	rebuilt := make([]bool, len(keys))
	for i, key := range keys {
		g.Go(func() error {
			if err := s.Rebuild(gCtx, key); err != nil {
				return err
			}
			rebuilt[i] = true
			log.Debugf("rebuilt %s", key)
			return nil
		})
	}
	err := g.Wait()

	count := 0
	for _, ok := range rebuilt {
		if ok {
			count++
		}
	}
	return count, err
}
