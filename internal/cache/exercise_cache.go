package cache

import (
	"encoding/json"
	"fmt"

	"github.com/2beens/liftrecords/internal/records"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	oneHour             = 60 * 60
	exerciseCacheExpire = oneHour * 6
	megabyte            = 1024 * 1024
)

// ExerciseCache keeps exercises (and with them their category) in memory,
// so a recalculation pass does not need a db round trip to know if the
// exercise supports personal records at all.
type ExerciseCache struct {
	cache *freecache.Cache
}

func NewExerciseCache(sizeMB int) *ExerciseCache {
	if sizeMB <= 0 {
		sizeMB = 8
	}
	return &ExerciseCache{
		cache: freecache.NewCache(sizeMB * megabyte),
	}
}

func exerciseKey(id int64) []byte {
	return []byte(fmt.Sprintf("exercise::%d", id))
}

func (c *ExerciseCache) Get(id int64) (records.Exercise, bool) {
	data, err := c.cache.Get(exerciseKey(id))
	if err != nil {
		return records.Exercise{}, false
	}

	var exercise records.Exercise
	if err := json.Unmarshal(data, &exercise); err != nil {
		log.Errorf("exercise cache: unmarshal exercise %d: %s", id, err)
		c.cache.Del(exerciseKey(id))
		return records.Exercise{}, false
	}
	return exercise, true
}

func (c *ExerciseCache) Set(exercise records.Exercise) {
	data, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("exercise cache: marshal exercise %d: %s", exercise.ID, err)
		return
	}
	if err := c.cache.Set(exerciseKey(exercise.ID), data, exerciseCacheExpire); err != nil {
		log.Errorf("exercise cache: set exercise %d: %s", exercise.ID, err)
	}
}

// Invalidate must be called whenever the category of an exercise changes.
func (c *ExerciseCache) Invalidate(id int64) {
	c.cache.Del(exerciseKey(id))
}

func (c *ExerciseCache) HitRate() float64 {
	return c.cache.HitRate()
}
