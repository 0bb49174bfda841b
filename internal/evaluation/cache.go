package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
)

var bucketAnswers = []byte("answers")

// CachedAnswer is the stored outcome of one question.
type CachedAnswer struct {
	TaskID          string    `json:"task_id"`
	Question        string    `json:"question"`
	SubmittedAnswer string    `json:"submitted_answer"`
	Error           string    `json:"error,omitempty"`
	RunID           string    `json:"run_id"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// Cache persists answers across runs in a BoltDB file.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open answer cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAnswers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %q: %w", bucketAnswers, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Put(a CachedAnswer) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		return tx.Bucket(bucketAnswers).Put([]byte(a.TaskID), data)
	})
}

// Get returns the cached answer for taskID and whether it exists.
func (c *Cache) Get(taskID string) (CachedAnswer, bool, error) {
	var a CachedAnswer
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAnswers).Get([]byte(taskID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &a)
	})
	if err != nil {
		return CachedAnswer{}, false, fmt.Errorf("failed to get answer %q: %w", taskID, err)
	}
	return a, found, nil
}

// All returns every cached answer sorted by task id.
func (c *Cache) All() ([]CachedAnswer, error) {
	var answers []CachedAnswer
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAnswers).ForEach(func(k, v []byte) error {
			var a CachedAnswer
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal answer %q: %w", k, err)
			}
			answers = append(answers, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].TaskID < answers[j].TaskID })
	return answers, nil
}

// Clear drops every cached answer.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketAnswers); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketAnswers)
		return err
	})
}
