// Package bolt is a storage.Storage backed by a bbolt database.  Each
// crew gets a bucket, and each machine's state is stored as JSON
// under its id.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Comcast/uimachine/storage"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

type Storage struct {
	filename string
	db       *bolt.DB
	logger   *zap.Logger
}

func NewStorage(filename string, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		filename: filename,
		logger:   logger.With(zap.String("db", filename)),
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Storage) MakeCrew(ctx context.Context, pid string) error {
	s.logger.Debug("MakeCrew", zap.String("crew", pid))
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pid))
		return err
	})
}

func (s *Storage) RemCrew(ctx context.Context, pid string) error {
	s.logger.Debug("RemCrew", zap.String("crew", pid))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(pid))
	})
}

func (s *Storage) GetCrew(ctx context.Context, pid string) ([]*storage.MachineState, error) {
	mss := make([]*storage.MachineState, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pid))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var ms storage.MachineState
			if err := json.Unmarshal(bs, &ms); err != nil {
				return err
			}
			ms.Mid = string(id)
			mss = append(mss, &ms)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("GetCrew", zap.String("crew", pid), zap.Int("machines", len(mss)))

	if len(mss) == 0 {
		return nil, nil
	}

	return mss, nil
}

func (s *Storage) WriteState(ctx context.Context, pid string, mss []*storage.MachineState) error {
	if 0 == len(mss) {
		return nil
	}

	vals := make(map[string][]byte, len(mss))

	for _, ms := range mss {
		id := ms.Mid
		if ms.Deleted {
			vals[id] = nil
		} else {
			// To save some space, remove id.
			ms = &storage.MachineState{
				SpecSource: ms.SpecSource,
				Value:      ms.Value,
				Context:    ms.Context,
				Done:       ms.Done,
			}
			js, err := json.Marshal(&ms)
			if err != nil {
				return err
			}
			vals[id] = js
		}
	}

	s.logger.Debug("WriteState", zap.String("crew", pid), zap.Int("machines", len(vals)))

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(pid))
		if err != nil {
			return err
		}
		for id, bs := range vals {
			var (
				key = []byte(id)
				err error
			)
			if bs == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, bs)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
